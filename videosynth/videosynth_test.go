package videosynth

import (
	"os"
	"strings"
	"testing"

	"github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/models"
)

func TestWriteConcatListSkipsBlackFrames(t *testing.T) {
	s := New("ffmpeg", t.TempDir(), "/frames", config.VideoConfig{SpeedMultiplier: 10}, 1)

	frames := []*models.FrameRecord{
		{TimestampMs: 0, FilePath: "a.jpg"},
		{TimestampMs: 1000, FilePath: "", IsBlack: true},
		{TimestampMs: 2000, FilePath: "b.jpg"},
	}

	listPath, err := s.writeConcatList(1, frames, 0)
	if err != nil {
		t.Fatalf("writeConcatList: %v", err)
	}
	defer os.Remove(listPath)

	data, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)

	if strings.Contains(content, "a.jpg") == false {
		t.Fatalf("expected a.jpg in concat list, got:\n%s", content)
	}
	if strings.Contains(content, "b.jpg") == false {
		t.Fatalf("expected b.jpg in concat list, got:\n%s", content)
	}
	if strings.Count(content, "file") != 3 {
		t.Fatalf("expected black frame to be skipped, got:\n%s", content)
	}
}

func TestWriteConcatListEmptyFrames(t *testing.T) {
	s := New("ffmpeg", t.TempDir(), "/frames", config.VideoConfig{SpeedMultiplier: 1}, 1)

	listPath, err := s.writeConcatList(1, nil, 0)
	if err != nil {
		t.Fatalf("writeConcatList: %v", err)
	}
	defer os.Remove(listPath)

	data, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected empty list for no frames, got:\n%s", string(data))
	}
}

func TestWriteConcatListSpeedOverrideBeatsConfigured(t *testing.T) {
	s := New("ffmpeg", t.TempDir(), "/frames", config.VideoConfig{SpeedMultiplier: 1}, 1)

	frames := []*models.FrameRecord{
		{TimestampMs: 0, FilePath: "a.jpg"},
		{TimestampMs: 10_000, FilePath: "b.jpg"},
	}

	overridden, err := s.writeConcatList(1, frames, 10)
	if err != nil {
		t.Fatalf("writeConcatList: %v", err)
	}
	defer os.Remove(overridden)
	withOverride, err := os.ReadFile(overridden)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	baseline, err := s.writeConcatList(1, frames, 0)
	if err != nil {
		t.Fatalf("writeConcatList: %v", err)
	}
	defer os.Remove(baseline)
	withoutOverride, err := os.ReadFile(baseline)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(withOverride) == string(withoutOverride) {
		t.Fatalf("expected speedOverride to change frame durations, got identical output")
	}
}
