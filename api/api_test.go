package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/deletexiumu/screen-analyzer/capture"
	"github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/db"
	"github.com/deletexiumu/screen-analyzer/llm"
	"github.com/deletexiumu/screen-analyzer/models"
	"github.com/deletexiumu/screen-analyzer/notifications"
	"github.com/deletexiumu/screen-analyzer/retention"
	"github.com/deletexiumu/screen-analyzer/scheduler"
	"github.com/deletexiumu/screen-analyzer/segmenter"
	"github.com/deletexiumu/screen-analyzer/videosynth"
)

func setupTestHandlers(t *testing.T) (*Handlers, *gin.Engine) {
	t.Helper()
	dir := t.TempDir()
	os.Setenv("SCREEN_ANALYZER_DATA_DIR", dir)
	t.Cleanup(func() { os.Unsetenv("SCREEN_ANALYZER_DATA_DIR") })
	config.ResetForTest()
	db.ResetForTest()
	_ = db.GetDB()
	t.Cleanup(func() { db.Close() })

	cv := config.Default()
	cfgMgr, err := config.NewManager(cfg(t).ConfigPath)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	engine := capture.NewEngine(cfg(t).FramesDir, cv.CaptureSettings)
	seg := segmenter.New(segmenter.DefaultConfig())
	synth := videosynth.New("ffmpeg", cfg(t).VideosDir, cfg(t).FramesDir, cv.VideoConfig, 1)
	active := llm.NewActiveCell()
	orch := llm.NewOrchestrator(active, cfg(t).FramesDir, llm.DefaultConfig())
	retSvc := retention.New(cfg(t).FramesDir, cfg(t).VideosDir, cfg(t).DatabasePath)
	notifSvc := notifications.NewService()
	sched, err := scheduler.New(engine, seg, synth, orch, retSvc, notifSvc, cv)
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}

	h := NewHandlers(cfgMgr, engine, sched, orch, retSvc, notifSvc, cfg(t).FramesDir, cfg(t).VideosDir)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	SetupRoutes(r, h)
	return h, r
}

func cfg(t *testing.T) *config.Config {
	t.Helper()
	return config.Get()
}

func insertTestSession(t *testing.T, startMs, endMs int64, state models.AnalysisState) int64 {
	t.Helper()
	id, err := db.OpenSession(startMs, "dev", models.DeviceLinux)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if err := db.ExtendSession(id, endMs, 1); err != nil {
		t.Fatalf("ExtendSession: %v", err)
	}
	if state != models.AnalysisOpen {
		if err := db.CloseSession(id, state); err != nil {
			t.Fatalf("CloseSession: %v", err)
		}
	}
	return id
}

func performRequest(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionPath(id int64) string {
	return "/api/sessions/" + strconv.FormatInt(id, 10)
}
