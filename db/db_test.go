package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/models"
)

// setupTestDB points the process config at a fresh temp directory and
// forces a new connection by resetting the package singletons. Tests in
// this package must not run in parallel with each other because of this.
func setupTestDB(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	os.Setenv("SCREEN_ANALYZER_DATA_DIR", dir)
	t.Cleanup(func() { os.Unsetenv("SCREEN_ANALYZER_DATA_DIR") })

	config.ResetForTest()
	ResetForTest()

	_ = GetDB()
	t.Cleanup(func() { Close() })
}

func TestMigrationsCreateSchema(t *testing.T) {
	setupTestDB(t)

	version, err := GetCurrentVersion()
	if err != nil {
		t.Fatalf("GetCurrentVersion: %v", err)
	}
	if version < 1 {
		t.Fatalf("expected schema version >= 1, got %d", version)
	}
}

func TestFrameLifecycle(t *testing.T) {
	setupTestDB(t)

	id, err := InsertFrame(&models.FrameRecord{
		TimestampMs:  1000,
		FilePath:     filepath.Join("2026", "08", "06", "frame-1000.jpg"),
		DisplayIndex: 0,
		Width:        1920,
		Height:       1080,
		ByteSize:     12345,
	})
	if err != nil {
		t.Fatalf("InsertFrame: %v", err)
	}

	unbound, err := ListUnboundFrames(10)
	if err != nil {
		t.Fatalf("ListUnboundFrames: %v", err)
	}
	if len(unbound) != 1 || unbound[0].ID != id {
		t.Fatalf("expected 1 unbound frame with id %d, got %+v", id, unbound)
	}

	sessionID, err := OpenSession(1000, "test-device", models.DeviceLinux)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	if err := BindFramesToSession([]int64{id}, sessionID); err != nil {
		t.Fatalf("BindFramesToSession: %v", err)
	}

	bound, err := ListFramesInSession(sessionID)
	if err != nil {
		t.Fatalf("ListFramesInSession: %v", err)
	}
	if len(bound) != 1 {
		t.Fatalf("expected 1 bound frame, got %d", len(bound))
	}

	remaining, err := ListUnboundFrames(10)
	if err != nil {
		t.Fatalf("ListUnboundFrames after bind: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no unbound frames left, got %d", len(remaining))
	}
}

func TestInsertFrameRejectsNonMonotonicTimestamp(t *testing.T) {
	setupTestDB(t)

	if _, err := InsertFrame(&models.FrameRecord{TimestampMs: 1000, FilePath: "a.jpg", DisplayIndex: 0, Width: 10, Height: 10, ByteSize: 1}); err != nil {
		t.Fatalf("InsertFrame: %v", err)
	}

	if _, err := InsertFrame(&models.FrameRecord{TimestampMs: 1000, FilePath: "b.jpg", DisplayIndex: 0, Width: 10, Height: 10, ByteSize: 1}); err == nil {
		t.Fatalf("expected equal timestamp on same display to be rejected")
	}

	if _, err := InsertFrame(&models.FrameRecord{TimestampMs: 500, FilePath: "c.jpg", DisplayIndex: 0, Width: 10, Height: 10, ByteSize: 1}); err == nil {
		t.Fatalf("expected earlier timestamp on same display to be rejected")
	}

	if _, err := InsertFrame(&models.FrameRecord{TimestampMs: 500, FilePath: "d.jpg", DisplayIndex: 1, Width: 10, Height: 10, ByteSize: 1}); err != nil {
		t.Fatalf("expected independent display to accept its own timestamp: %v", err)
	}
}

func TestSessionAnalysisStateMachine(t *testing.T) {
	setupTestDB(t)

	sessionID, err := OpenSession(0, "dev", models.DeviceMacOS)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	if err := CloseSession(sessionID, models.AnalysisClosed); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}

	summary := models.SessionSummary{
		Title:   "Writing Go",
		Summary: "Worked on the screen analyzer backend",
		Tags: []models.ActivityTag{
			{Category: models.CategoryWork, Confidence: 0.9, Source: models.TagSourceLLM},
		},
	}
	if err := UpdateSessionAnalysis(sessionID, summary, models.AnalysisAnalyzed, ""); err != nil {
		t.Fatalf("UpdateSessionAnalysis: %v", err)
	}

	got, err := GetSession(sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.AnalysisState != models.AnalysisAnalyzed {
		t.Fatalf("expected state %q, got %q", models.AnalysisAnalyzed, got.AnalysisState)
	}
	if got.Title != "Writing Go" {
		t.Fatalf("expected title to round-trip, got %q", got.Title)
	}
	if len(got.Tags) != 1 || got.Tags[0].Category != models.CategoryWork {
		t.Fatalf("expected tags to round-trip, got %+v", got.Tags)
	}
}

func TestAddManualTagAppends(t *testing.T) {
	setupTestDB(t)

	sessionID, err := OpenSession(0, "dev", models.DeviceWindows)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	llmTag := models.ActivityTag{Category: models.CategoryWork, Confidence: 0.8, Source: models.TagSourceLLM}
	if err := UpdateSessionAnalysis(sessionID, models.SessionSummary{Tags: []models.ActivityTag{llmTag}}, models.AnalysisAnalyzed, ""); err != nil {
		t.Fatalf("UpdateSessionAnalysis: %v", err)
	}

	manualTag := models.ActivityTag{Category: models.CategoryPersonal, Confidence: 1.0}
	if err := AddManualTag(sessionID, manualTag); err != nil {
		t.Fatalf("AddManualTag: %v", err)
	}

	got, err := GetSession(sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(got.Tags) != 2 {
		t.Fatalf("expected 2 tags after manual add, got %d", len(got.Tags))
	}
	if got.Tags[1].Source != models.TagSourceManual {
		t.Fatalf("expected second tag source to be manual, got %q", got.Tags[1].Source)
	}
}

func TestLeaseAcquireExcludesConcurrentHolder(t *testing.T) {
	setupTestDB(t)

	ok, err := AcquireLease(1, "analysis", "worker-a", 60000)
	if err != nil {
		t.Fatalf("AcquireLease: %v", err)
	}
	if !ok {
		t.Fatalf("expected first acquire to succeed")
	}

	ok, err = AcquireLease(1, "analysis", "worker-b", 60000)
	if err != nil {
		t.Fatalf("AcquireLease (contended): %v", err)
	}
	if ok {
		t.Fatalf("expected contended acquire to fail while lease is live")
	}

	if err := ReleaseLease(1, "analysis", "worker-a"); err != nil {
		t.Fatalf("ReleaseLease: %v", err)
	}

	ok, err = AcquireLease(1, "analysis", "worker-b", 60000)
	if err != nil {
		t.Fatalf("AcquireLease (after release): %v", err)
	}
	if !ok {
		t.Fatalf("expected acquire to succeed after release")
	}
}

func TestPruneSessionRemovesRows(t *testing.T) {
	setupTestDB(t)

	sessionID, err := OpenSession(0, "dev", models.DeviceLinux)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}

	frameID, err := InsertFrame(&models.FrameRecord{TimestampMs: 0, FilePath: "f.jpg", Width: 10, Height: 10, ByteSize: 1})
	if err != nil {
		t.Fatalf("InsertFrame: %v", err)
	}
	if err := BindFramesToSession([]int64{frameID}, sessionID); err != nil {
		t.Fatalf("BindFramesToSession: %v", err)
	}

	paths, _, err := SessionFilePaths(sessionID)
	if err != nil {
		t.Fatalf("SessionFilePaths: %v", err)
	}
	if len(paths) != 1 || paths[0] != "f.jpg" {
		t.Fatalf("expected frame path, got %+v", paths)
	}

	if err := DeleteSessionRows(sessionID); err != nil {
		t.Fatalf("DeleteSessionRows: %v", err)
	}

	if got, err := GetSession(sessionID); err != nil {
		t.Fatalf("GetSession: %v", err)
	} else if got != nil {
		t.Fatalf("expected session to be gone after prune")
	}
}
