// Package capture runs the periodic screenshot loop: enumerate displays,
// grab pixels, downscale and compress to JPEG, detect black frames, and
// hand the result to the store as an unbound frame for the segmenter.
package capture

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/kbinani/screenshot"

	"github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/db"
	"github.com/deletexiumu/screen-analyzer/log"
	"github.com/deletexiumu/screen-analyzer/models"
)

var logger = log.GetLogger("CAPTURE")

// State is the Capture Engine's coarse run state.
type State string

const (
	StateIdle      State = "idle"
	StateCapturing State = "capturing"
	StatePaused    State = "paused"
)

// resolutionTargets maps a ResolutionPolicy to a maximum long-edge pixel
// count. "original" never downscales.
var resolutionTargets = map[models.ResolutionPolicy]int{
	models.Resolution1080p: 1920,
	models.Resolution2K:    2560,
	models.Resolution4K:    3840,
}

// Engine owns the capture state machine. Tick is meant to be called by the
// scheduler's periodic job; it is re-entry-safe via TryLock so an overlapping
// tick (a prior tick still writing to disk) is skipped and counted, never
// queued — frames are never backlogged.
type Engine struct {
	mu          sync.Mutex
	state       State
	settings    config.CaptureSettings
	framesDir   string
	deviceName  string
	deviceType  models.DeviceType
	lastError   string
	skippedTick int64
	locked      chan struct{} // len 1 buffered channel used as a TryLock
}

// NewEngine constructs an Engine with the device identity resolved once at
// startup, matching the original implementation's get_device_info concept.
func NewEngine(framesDir string, settings config.CaptureSettings) *Engine {
	e := &Engine{
		state:      StateIdle,
		settings:   settings,
		framesDir:  framesDir,
		deviceName: deviceName(),
		deviceType: deviceType(),
		locked:     make(chan struct{}, 1),
	}
	e.locked <- struct{}{}
	return e
}

// ApplySettings is registered as a config.Subscriber so a change to
// image_quality, resolution, or black-screen detection takes effect on the
// engine's next tick without a restart.
func (e *Engine) ApplySettings(cv config.ConfigValue) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = cv.CaptureSettings
}

// Pause/Resume flip the state machine without affecting in-flight ticks.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StatePaused
}

func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePaused {
		e.state = StateIdle
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Tick captures one frame from every active, non-excluded display. It is
// safe to call from a timer even if the previous tick hasn't finished: the
// second caller returns immediately having skipped.
func (e *Engine) Tick(ctx context.Context) error {
	select {
	case <-e.locked:
	default:
		e.mu.Lock()
		e.skippedTick++
		e.mu.Unlock()
		logger.Debug().Msg("capture tick skipped, previous tick still running")
		return nil
	}
	defer func() { e.locked <- struct{}{} }()

	e.mu.Lock()
	if e.state == StatePaused {
		e.mu.Unlock()
		return nil
	}
	e.state = StateCapturing
	settings := e.settings
	e.mu.Unlock()

	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		e.setLastError("no active displays enumerated")
		e.mu.Lock()
		if e.state == StateCapturing {
			e.state = StateIdle
		}
		e.mu.Unlock()
		return fmt.Errorf("no active displays")
	}

	excluded := make(map[int]bool, len(settings.ExcludedDisplays))
	for _, d := range settings.ExcludedDisplays {
		excluded[d] = true
	}

	now := time.Now()
	var firstErr error
	for i := 0; i < n; i++ {
		if excluded[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			firstErr = err
			break
		}
		if err := e.captureDisplay(i, now, settings); err != nil {
			logger.Warn().Err(err).Int("display", i).Msg("capture failed for display")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	e.mu.Lock()
	if e.state == StateCapturing {
		e.state = StateIdle
	}
	e.mu.Unlock()

	if firstErr != nil {
		e.setLastError(firstErr.Error())
	} else {
		e.setLastError("")
	}
	return firstErr
}

func (e *Engine) captureDisplay(index int, ts time.Time, settings config.CaptureSettings) error {
	bounds := screenshot.GetDisplayBounds(index)
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return fmt.Errorf("capture display %d: %w", index, err)
	}

	resized := downscale(img, models.ResolutionPolicy(settings.Resolution))

	isBlack := false
	if settings.DetectBlackScreen {
		isBlack = isBlackFrame(resized, settings.BlackScreenThreshold)
	}

	if isBlack && settings.SkipWritingBlack {
		_, err := db.InsertFrame(&models.FrameRecord{
			TimestampMs:  ts.UnixMilli(),
			FilePath:     "",
			DisplayIndex: index,
			Width:        resized.Bounds().Dx(),
			Height:       resized.Bounds().Dy(),
			ByteSize:     0,
			IsBlack:      true,
		})
		return err
	}

	relPath, byteSize, err := e.writeJPEG(resized, ts, index, settings.ImageQuality)
	if err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	_, err = db.InsertFrame(&models.FrameRecord{
		TimestampMs:  ts.UnixMilli(),
		FilePath:     relPath,
		DisplayIndex: index,
		Width:        resized.Bounds().Dx(),
		Height:       resized.Bounds().Dy(),
		ByteSize:     byteSize,
		IsBlack:      isBlack,
	})
	return err
}

// writeJPEG stores one frame under <framesDir>/<YYYY-MM-DD>/, named by epoch
// millisecond and display, and returns the path relative to framesDir.
func (e *Engine) writeJPEG(img image.Image, ts time.Time, display, quality int) (string, int64, error) {
	dayDir := ts.Format("2006-01-02")
	absDir := filepath.Join(e.framesDir, dayDir)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return "", 0, err
	}

	name := fmt.Sprintf("%d_%d.jpg", ts.UnixMilli(), display)
	relPath := filepath.Join(dayDir, name)
	absPath := filepath.Join(e.framesDir, relPath)

	f, err := os.Create(absPath)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		os.Remove(absPath)
		return "", 0, err
	}

	info, err := f.Stat()
	if err != nil {
		return relPath, 0, nil
	}
	return relPath, info.Size(), nil
}

func (e *Engine) setLastError(msg string) {
	e.mu.Lock()
	e.lastError = msg
	e.mu.Unlock()
}

// LastError returns the most recent capture error, or "" if the last tick
// succeeded. Surfaced by get_system_status.
func (e *Engine) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// Identity returns the device name/type this engine tags every frame with.
func (e *Engine) Identity() (string, models.DeviceType) {
	return e.deviceName, e.deviceType
}

func deviceName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "unknown-device"
}

func deviceType() models.DeviceType {
	switch runtime.GOOS {
	case "windows":
		return models.DeviceWindows
	case "darwin":
		return models.DeviceMacOS
	case "linux":
		return models.DeviceLinux
	default:
		return models.DeviceUnknown
	}
}
