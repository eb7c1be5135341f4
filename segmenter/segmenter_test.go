package segmenter

import (
	"os"
	"testing"

	"github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/db"
	"github.com/deletexiumu/screen-analyzer/models"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("SCREEN_ANALYZER_DATA_DIR", dir)
	t.Cleanup(func() { os.Unsetenv("SCREEN_ANALYZER_DATA_DIR") })
	config.ResetForTest()
	db.ResetForTest()
	_ = db.GetDB()
	t.Cleanup(func() { db.Close() })
}

func insertFrame(t *testing.T, tsMs int64) {
	t.Helper()
	if _, err := db.InsertFrame(&models.FrameRecord{
		TimestampMs: tsMs,
		FilePath:    "f.jpg",
		Width:       10,
		Height:      10,
		ByteSize:    1,
	}); err != nil {
		t.Fatalf("InsertFrame: %v", err)
	}
}

func TestTickOpensSingleSessionForContiguousFrames(t *testing.T) {
	setupTestDB(t)

	insertFrame(t, 0)
	insertFrame(t, 1000)
	insertFrame(t, 2000)

	s := New(DefaultConfig())
	if err := s.Tick("dev", models.DeviceLinux); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	sessions, err := db.QueryDaySessions(-1, 1<<40)
	if err != nil {
		t.Fatalf("QueryDaySessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].FrameCount != 3 {
		t.Fatalf("expected 3 frames bound, got %d", sessions[0].FrameCount)
	}
	if sessions[0].AnalysisState != models.AnalysisOpen {
		t.Fatalf("expected session to remain open, got %q", sessions[0].AnalysisState)
	}
}

func TestTickSplitsOnIdleGap(t *testing.T) {
	setupTestDB(t)

	cfg := DefaultConfig()
	cfg.IdleGapSeconds = 5

	insertFrame(t, 0)
	insertFrame(t, 1000)
	insertFrame(t, 60_000) // 59s gap, exceeds 5s threshold

	s := New(cfg)
	if err := s.Tick("dev", models.DeviceLinux); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	sessions, err := db.QueryDaySessions(-1, 1<<40)
	if err != nil {
		t.Fatalf("QueryDaySessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions after idle gap split, got %d", len(sessions))
	}
}

func TestTickMaxWindowBindsTriggeringFrameAndClosesAnalyzable(t *testing.T) {
	setupTestDB(t)

	cfg := DefaultConfig() // MaxSessionMinutes=15, MinSessionSeconds=900
	cfg.MaxSessionMinutes = 1
	cfg.MinSessionSeconds = 60

	insertFrame(t, 0)
	insertFrame(t, 30_000)
	insertFrame(t, 60_000) // completes the 1 minute window exactly

	s := New(cfg)
	if err := s.Tick("dev", models.DeviceLinux); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	sessions, err := db.QueryDaySessions(-1, 1<<40)
	if err != nil {
		t.Fatalf("QueryDaySessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].FrameCount != 3 {
		t.Fatalf("expected the boundary frame bound into the closing session, got %d frames", sessions[0].FrameCount)
	}
	if sessions[0].AnalysisState != models.AnalysisClosed {
		t.Fatalf("expected a full window to close analyzable (closed), got %q", sessions[0].AnalysisState)
	}
}

func TestFlushClosesOpenSessionAsTooShort(t *testing.T) {
	setupTestDB(t)

	cfg := DefaultConfig()
	cfg.MinSessionSeconds = 30

	insertFrame(t, 0)
	insertFrame(t, 1000)

	s := New(cfg)
	if err := s.Tick("dev", models.DeviceMacOS); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if err := s.Flush("dev"); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	sessions, err := db.QueryDaySessions(-1, 1<<40)
	if err != nil {
		t.Fatalf("QueryDaySessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].AnalysisState != models.AnalysisTooShort {
		t.Fatalf("expected too_short state, got %q", sessions[0].AnalysisState)
	}
}
