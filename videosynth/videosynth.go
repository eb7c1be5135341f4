// Package videosynth renders a session's bound frames into a sped-up
// preview clip via an external ffmpeg binary, driven the same way the
// CLI-subprocess transport drives its child process: explicit environment,
// piped stdio, context-bound timeout, and a monitor goroutine.
package videosynth

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/db"
	"github.com/deletexiumu/screen-analyzer/log"
	"github.com/deletexiumu/screen-analyzer/models"
)

var logger = log.GetLogger("VIDEOSYNTH")

// EncoderErrorKind distinguishes failure modes so the caller can decide
// whether to retry, disable auto-generation, or surface a user-facing
// "ffmpeg not found" message.
type EncoderErrorKind string

const (
	EncoderMissing EncoderErrorKind = "encoder_missing"
	EncoderFailed  EncoderErrorKind = "encoder_failed"
	EncoderTimeout EncoderErrorKind = "encoder_timeout"
)

// EncoderError wraps an ffmpeg failure with a classification.
type EncoderError struct {
	Kind   EncoderErrorKind
	Stderr string
	Cause  error
}

func (e *EncoderError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v (stderr: %s)", e.Kind, e.Cause, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *EncoderError) Unwrap() error { return e.Cause }

// Synthesizer renders preview clips. A bounded worker pool enforces
// cross-session concurrency; the per-session "video" lease in db enforces
// at most one synthesis per session regardless of which caller triggers it.
type Synthesizer struct {
	ffmpegPath string
	videosDir  string
	framesDir  string
	settings   config.VideoConfig
	sem        chan struct{}
}

func New(ffmpegPath, videosDir, framesDir string, settings config.VideoConfig, maxConcurrent int) *Synthesizer {
	if maxConcurrent < 1 {
		maxConcurrent = 2
	}
	return &Synthesizer{
		ffmpegPath: ffmpegPath,
		videosDir:  videosDir,
		framesDir:  framesDir,
		settings:   settings,
		sem:        make(chan struct{}, maxConcurrent),
	}
}

// ApplySettings is a config.Subscriber hook.
func (s *Synthesizer) ApplySettings(cv config.ConfigValue) {
	s.settings = cv.VideoConfig
}

// Synthesize renders sessionID's frames into videos/<sessionID>.mp4,
// returning the path relative to the videos root. It acquires the
// per-session lease so a scheduler tick and an on-demand request never
// double-encode the same session, then blocks until a worker slot is
// free. speedOverride
// replaces the configured SpeedMultiplier for this call only when positive;
// zero means "use whatever ApplySettings last set".
func (s *Synthesizer) Synthesize(ctx context.Context, sessionID int64, holder string, speedOverride int) (string, error) {
	acquired, err := db.AcquireLease(sessionID, "video", holder, 10*60*1000)
	if err != nil {
		return "", err
	}
	if !acquired {
		return "", fmt.Errorf("session %d: video synthesis already in progress", sessionID)
	}
	defer db.ReleaseLease(sessionID, "video", holder)

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	frames, err := db.ListFramesInSession(sessionID)
	if err != nil {
		return "", err
	}
	if len(frames) == 0 {
		return "", fmt.Errorf("session %d: no frames to synthesize", sessionID)
	}

	listPath, err := s.writeConcatList(sessionID, frames, speedOverride)
	if err != nil {
		return "", err
	}
	defer os.Remove(listPath)

	outRel := fmt.Sprintf("%d.mp4", sessionID)
	outAbs := filepath.Join(s.videosDir, outRel)
	if err := os.MkdirAll(s.videosDir, 0o755); err != nil {
		return "", err
	}

	if err := s.runFFmpeg(ctx, listPath, outAbs); err != nil {
		return "", err
	}

	if err := db.SetVideoPath(sessionID, outRel); err != nil {
		return "", err
	}
	return outRel, nil
}

// writeConcatList emits an ffmpeg concat-demuxer list: one "file" line per
// frame plus a "duration" line giving each frame's on-screen time once the
// speed multiplier is applied. speedOverride takes precedence over the
// configured multiplier when positive.
func (s *Synthesizer) writeConcatList(sessionID int64, frames []*models.FrameRecord, speedOverride int) (string, error) {
	listPath := filepath.Join(os.TempDir(), fmt.Sprintf("screen-analyzer-%d-%d.txt", sessionID, time.Now().UnixNano()))
	f, err := os.Create(listPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	multiplier := s.settings.SpeedMultiplier
	if speedOverride > 0 {
		multiplier = speedOverride
	}
	if multiplier < 1 {
		multiplier = 1
	}

	var prevTs int64
	var lastPath string
	wroteAny := false
	for _, fr := range frames {
		if fr.IsBlack || fr.FilePath == "" {
			continue
		}
		abs := filepath.Join(s.framesDir, fr.FilePath)

		intervalSeconds := 1.0
		if wroteAny {
			intervalSeconds = float64(fr.TimestampMs-prevTs) / 1000.0
			if intervalSeconds <= 0 {
				intervalSeconds = 1.0
			}
		}
		duration := intervalSeconds / float64(multiplier)

		fmt.Fprintf(w, "file '%s'\n", abs)
		fmt.Fprintf(w, "duration %f\n", duration)
		prevTs = fr.TimestampMs
		lastPath = abs
		wroteAny = true
	}
	// The concat demuxer requires the last listed file to repeat without a
	// duration directive, or it gets truncated to zero length.
	if wroteAny {
		fmt.Fprintf(w, "file '%s'\n", lastPath)
	}

	return listPath, nil
}

func (s *Synthesizer) runFFmpeg(ctx context.Context, listPath, outPath string) error {
	if _, err := exec.LookPath(s.ffmpegPath); err != nil {
		return &EncoderError{Kind: EncoderMissing, Cause: err}
	}

	timeout := 5 * time.Minute
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	crf := s.settings.Quality
	if crf <= 0 {
		crf = 28
	}

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-vsync", "vfr",
		"-pix_fmt", "yuv420p",
		"-c:v", "libx264",
		"-crf", fmt.Sprintf("%d", crf),
		outPath,
	}

	cmd := exec.CommandContext(runCtx, s.ffmpegPath, args...)
	cmd.Env = buildChildEnv()
	setPlatformAttrs(cmd)

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return &EncoderError{Kind: EncoderFailed, Cause: err}
	}

	if err := cmd.Start(); err != nil {
		return &EncoderError{Kind: EncoderFailed, Cause: err}
	}

	var stderrTail string
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			stderrTail = scanner.Text()
		}
	}()

	waitErr := cmd.Wait()
	<-done

	if runCtx.Err() == context.DeadlineExceeded {
		return &EncoderError{Kind: EncoderTimeout, Stderr: stderrTail, Cause: runCtx.Err()}
	}
	if waitErr != nil {
		return &EncoderError{Kind: EncoderFailed, Stderr: stderrTail, Cause: waitErr}
	}

	logger.Info().Str("output", outPath).Msg("synthesized session video")
	return nil
}

// buildChildEnv constructs an explicit environment for the ffmpeg child
// rather than passing the parent's os.Environ() through unfiltered — only
// PATH is needed to resolve shared libraries and the binary itself.
func buildChildEnv() []string {
	return []string{
		"PATH=" + os.Getenv("PATH"),
	}
}
