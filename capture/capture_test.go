package capture

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/models"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDownscaleNeverUpscales(t *testing.T) {
	img := solidImage(800, 600, color.White)
	out := downscale(img, models.Resolution4K)
	if out.Bounds().Dx() != 800 || out.Bounds().Dy() != 600 {
		t.Fatalf("expected source to pass through unchanged, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestDownscalePreservesAspectRatio(t *testing.T) {
	img := solidImage(3840, 2160, color.White)
	out := downscale(img, models.Resolution1080p)

	if out.Bounds().Dx() != 1920 {
		t.Fatalf("expected long edge 1920, got %d", out.Bounds().Dx())
	}
	gotRatio := float64(out.Bounds().Dx()) / float64(out.Bounds().Dy())
	wantRatio := float64(3840) / float64(2160)
	if diff := gotRatio - wantRatio; diff > 0.01 || diff < -0.01 {
		t.Fatalf("aspect ratio drifted: got %f want %f", gotRatio, wantRatio)
	}
}

func TestDownscaleOriginalPolicyNoop(t *testing.T) {
	img := solidImage(3840, 2160, color.White)
	out := downscale(img, models.ResolutionOriginal)
	if out.Bounds().Dx() != 3840 || out.Bounds().Dy() != 2160 {
		t.Fatalf("expected original policy to leave image untouched")
	}
}

func TestIsBlackFrameDetectsDarkImage(t *testing.T) {
	img := solidImage(1920, 1080, color.Black)
	if !isBlackFrame(img, 5) {
		t.Fatalf("expected solid black image to be detected as black")
	}
}

func TestIsBlackFrameIgnoresBrightImage(t *testing.T) {
	img := solidImage(1920, 1080, color.White)
	if isBlackFrame(img, 5) {
		t.Fatalf("expected solid white image not to be detected as black")
	}
}

func TestIsBlackFrameZeroThresholdNeverMatches(t *testing.T) {
	img := solidImage(1920, 1080, color.Black)
	if isBlackFrame(img, 0) {
		t.Fatalf("expected threshold 0 to classify nothing as black, even a solid black frame")
	}
}

func TestWriteJPEGUsesDayBucketAndEpochName(t *testing.T) {
	e := NewEngine(t.TempDir(), config.CaptureSettings{})
	ts := time.Date(2026, 8, 6, 12, 30, 0, 0, time.UTC)

	relPath, size, err := e.writeJPEG(solidImage(64, 64, color.White), ts, 1, 80)
	if err != nil {
		t.Fatalf("writeJPEG: %v", err)
	}
	if size == 0 {
		t.Fatalf("expected non-zero byte size")
	}

	want := filepath.Join("2026-08-06", "1786019400000_1.jpg")
	if relPath != want {
		t.Fatalf("expected path %q, got %q", want, relPath)
	}
}

func TestEngineIdentityMatchesRuntime(t *testing.T) {
	e := NewEngine(t.TempDir(), config.CaptureSettings{})
	name, dt := e.Identity()
	if name == "" {
		t.Fatalf("expected a non-empty device name")
	}
	if dt == "" {
		t.Fatalf("expected a non-empty device type")
	}
}
