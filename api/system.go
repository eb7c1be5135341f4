package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coder/websocket"

	"github.com/deletexiumu/screen-analyzer/errs"
	"github.com/deletexiumu/screen-analyzer/llm"
	"github.com/deletexiumu/screen-analyzer/log"
	"github.com/deletexiumu/screen-analyzer/models"
	"github.com/deletexiumu/screen-analyzer/notifications"
)

var systemLogger = log.GetLogger("ApiSystem")

type systemStatus struct {
	CaptureState     string `json:"capture_state"`
	CaptureLastError string `json:"capture_last_error,omitempty"`
	ActiveProvider   string `json:"active_provider,omitempty"`
	ProviderReady    bool   `json:"provider_ready"`
	SubscriberCount  int    `json:"subscriber_count"`
}

func (h *Handlers) snapshot() systemStatus {
	st := systemStatus{
		CaptureState:    string(h.engine.State()),
		SubscriberCount: h.notif.SubscriberCount(),
	}
	if err := h.engine.LastError(); err != "" {
		st.CaptureLastError = err
	}
	return st
}

// GetSystemStatus handles GET /api/system/status, behind get_system_status().
func (h *Handlers) GetSystemStatus(c *gin.Context) {
	respondData(c, h.snapshot())
}

// ToggleCapture handles POST /api/capture/toggle, behind toggle_capture(bool).
func (h *Handlers) ToggleCapture(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	if req.Enabled {
		h.engine.Resume()
	} else {
		h.engine.Pause()
	}
	h.notif.NotifyConfigChanged()
	respondData(c, h.snapshot())
}

// GetStorageStats handles GET /api/storage/stats, behind get_storage_stats().
func (h *Handlers) GetStorageStats(c *gin.Context) {
	stats, err := h.retention.Stats()
	if err != nil {
		respondError(c, errs.Wrap(errs.StorageIO, "failed to compute storage stats", err))
		return
	}
	respondData(c, stats)
}

// CleanupStorage handles POST /api/storage/cleanup, behind cleanup_storage().
func (h *Handlers) CleanupStorage(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Minute)
	defer cancel()

	removed, err := h.retention.Cleanup(ctx)
	if err != nil {
		respondError(c, errs.Wrap(errs.StorageIO, "cleanup failed", err))
		return
	}
	respondData(c, gin.H{"files_removed": removed})
}

type testLLMRequest struct {
	Provider string          `json:"provider" binding:"required"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// TestLLMAPI handles POST /api/llm/test, behind test_llm_api(provider, config).
// It configures the named provider with the supplied blob and makes one
// lightweight day-summary call (no frames needed) to confirm connectivity,
// without swapping it in as the active provider.
func (h *Handlers) TestLLMAPI(c *gin.Context) {
	var req testLLMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	provider := llm.GlobalRegistry.Get(req.Provider)
	if provider == nil {
		respondError(c, errs.New(errs.ConfigInvalid, "unknown provider: "+req.Provider))
		return
	}

	if len(req.Config) > 0 {
		if err := provider.Configure(req.Config); err != nil {
			respondError(c, errs.Wrap(errs.ConfigInvalid, "failed to configure provider", err))
			return
		}
	}
	if !provider.IsConfigured() {
		respondError(c, errs.New(errs.ConfigInvalid, "provider is not fully configured"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if _, _, err := provider.GenerateDaySummary(ctx, []models.SessionBrief{}, ""); err != nil {
		respondError(c, errs.Wrap(errs.LLMUnavailable, "provider test call failed", err))
		return
	}
	respondData(c, gin.H{"ok": true})
}

// SystemStatusStream handles GET /api/system/status/stream, upgrading to a
// coder/websocket connection and pushing every notifications.Service event
// (capture ticks, session/analysis/video/config changes) as they happen.
func (h *Handlers) SystemStatusStream(c *gin.Context) {
	log.MarkHijacked(c)

	var w http.ResponseWriter = c.Writer
	if unwrapper, ok := c.Writer.(interface{ Unwrap() http.ResponseWriter }); ok {
		w = unwrapper.Unwrap()
	}

	conn, err := websocket.Accept(w, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		systemLogger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	c.Abort()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, unsubscribe := h.notif.Subscribe()
	defer unsubscribe()

	if err := writeJSON(ctx, conn, notifications.Event{Type: notifications.EventConnected, Timestamp: time.Now().UnixMilli()}); err != nil {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeJSON(ctx, conn, event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
