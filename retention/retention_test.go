package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/db"
	"github.com/deletexiumu/screen-analyzer/models"
)

func setupTestDB(t *testing.T) (framesDir string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SCREEN_ANALYZER_DATA_DIR", dir)
	config.ResetForTest()
	db.ResetForTest()
	db.GetDB()
	framesDir = filepath.Join(dir, "frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		t.Fatalf("mkdir frames: %v", err)
	}
	return framesDir
}

func writeFrameFile(t *testing.T, framesDir, rel string) {
	t.Helper()
	full := filepath.Join(framesDir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSweepPrunesSessionsPastRetention(t *testing.T) {
	framesDir := setupTestDB(t)
	videosDir := filepath.Join(filepath.Dir(framesDir), "videos")
	os.MkdirAll(videosDir, 0o755)

	sessionID, err := db.OpenSession(1000, "host", models.DeviceLinux)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if err := db.CloseSession(sessionID, models.AnalysisClosed); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}

	writeFrameFile(t, framesDir, "2020/01/01/frame-1000-d0.jpg")
	frameID, err := db.InsertFrame(&models.FrameRecord{
		TimestampMs: 1000, FilePath: "2020/01/01/frame-1000-d0.jpg", DisplayIndex: 0, Width: 10, Height: 10,
	})
	if err != nil {
		t.Fatalf("InsertFrame: %v", err)
	}
	if err := db.BindFramesToSession([]int64{frameID}, sessionID); err != nil {
		t.Fatalf("BindFramesToSession: %v", err)
	}

	svc := New(framesDir, videosDir, filepath.Join(filepath.Dir(framesDir), "db.sqlite"))
	if err := svc.Sweep(context.Background(), 1); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	sess, err := db.GetSession(sessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected session to be pruned, found %+v", sess)
	}
	if _, err := os.Stat(filepath.Join(framesDir, "2020/01/01/frame-1000-d0.jpg")); !os.IsNotExist(err) {
		t.Fatalf("expected frame file to be removed, stat err: %v", err)
	}
}

func TestScanOrphanFilesRemovesUnknownFrame(t *testing.T) {
	framesDir := setupTestDB(t)
	videosDir := filepath.Join(filepath.Dir(framesDir), "videos")
	os.MkdirAll(videosDir, 0o755)

	writeFrameFile(t, framesDir, "2020/01/01/orphan.jpg")

	svc := New(framesDir, videosDir, filepath.Join(filepath.Dir(framesDir), "db.sqlite"))
	removed, err := svc.ScanOrphanFiles()
	if err != nil {
		t.Fatalf("ScanOrphanFiles: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}
