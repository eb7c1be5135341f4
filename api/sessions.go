package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/deletexiumu/screen-analyzer/db"
	"github.com/deletexiumu/screen-analyzer/errs"
	"github.com/deletexiumu/screen-analyzer/log"
	"github.com/deletexiumu/screen-analyzer/models"
)

var sessionsLogger = log.GetLogger("ApiSessions")

func sessionIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "invalid session id")
		return 0, false
	}
	return id, true
}

// GetSessionDetail handles GET /api/sessions/:id, behind get_session_detail(id).
func (h *Handlers) GetSessionDetail(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	sess, err := db.GetSession(id)
	if err != nil {
		sessionsLogger.Error().Err(err).Int64("session_id", id).Msg("failed to load session")
		respondError(c, errs.Wrap(errs.DatabaseBusy, "failed to load session", err))
		return
	}
	if sess == nil {
		respondError(c, errs.New(errs.NotFound, "session not found"))
		return
	}
	respondData(c, sess)
}

// GetDaySessions handles GET /api/days/:date/sessions, behind
// get_day_sessions(date). date is YYYY-MM-DD, interpreted in UTC.
func (h *Handlers) GetDaySessions(c *gin.Context) {
	dayStartMs, dayEndMs, ok := parseDayParam(c, c.Param("date"))
	if !ok {
		return
	}

	sessions, err := db.QueryDaySessions(dayStartMs, dayEndMs)
	if err != nil {
		respondError(c, errs.Wrap(errs.DatabaseBusy, "failed to query day sessions", err))
		return
	}
	respondList(c, sessions)
}

// DeleteSession handles DELETE /api/sessions/:id, behind delete_session(id).
func (h *Handlers) DeleteSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	sess, err := db.GetSession(id)
	if err != nil {
		respondError(c, errs.Wrap(errs.DatabaseBusy, "failed to load session", err))
		return
	}
	if sess == nil {
		respondError(c, errs.New(errs.NotFound, "session not found"))
		return
	}

	if err := h.retention.DeleteSession(id); err != nil {
		sessionsLogger.Error().Err(err).Int64("session_id", id).Msg("failed to delete session")
		respondError(c, errs.Wrap(errs.StorageIO, "failed to delete session", err))
		return
	}
	respondNoContent(c)
}

// RetrySessionAnalysis handles POST /api/sessions/:id/retry, behind
// retry_session_analysis(id): forces re-analysis regardless of current
// analysis_state, including too_short and failed.
func (h *Handlers) RetrySessionAnalysis(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	sess, err := db.GetSession(id)
	if err != nil {
		respondError(c, errs.Wrap(errs.DatabaseBusy, "failed to load session", err))
		return
	}
	if sess == nil {
		respondError(c, errs.New(errs.NotFound, "session not found"))
		return
	}

	if err := h.sched.ForceAnalysis(id); err != nil {
		respondError(c, errs.Wrap(errs.DatabaseBusy, "failed to queue re-analysis", err))
		return
	}
	respondData(c, gin.H{"queued": true})
}

// TriggerAnalysis handles POST /api/analysis/trigger, behind
// trigger_analysis(): queues every closed session immediately instead of
// waiting for the next analysis-poll tick.
func (h *Handlers) TriggerAnalysis(c *gin.Context) {
	queued, err := h.sched.TriggerAnalysisNow()
	if err != nil {
		respondError(c, errs.Wrap(errs.DatabaseBusy, "failed to trigger analysis", err))
		return
	}
	respondData(c, gin.H{"queued": queued})
}

type generateVideoRequest struct {
	SpeedMultiplier int `json:"speed_multiplier"`
}

// GenerateVideo handles POST /api/sessions/:id/video, behind
// generate_video(id, speed).
func (h *Handlers) GenerateVideo(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	var req generateVideoRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}
	if req.SpeedMultiplier != 0 && (req.SpeedMultiplier < 1 || req.SpeedMultiplier > 50) {
		respondError(c, errs.New(errs.ConfigInvalid, "speed_multiplier must be between 1 and 50"))
		return
	}

	sess, err := db.GetSession(id)
	if err != nil {
		respondError(c, errs.Wrap(errs.DatabaseBusy, "failed to load session", err))
		return
	}
	if sess == nil {
		respondError(c, errs.New(errs.NotFound, "session not found"))
		return
	}

	h.sched.RequestVideo(id, req.SpeedMultiplier)
	respondData(c, gin.H{"queued": true})
}

type addManualTagRequest struct {
	Category          models.ActivityCategory `json:"category" binding:"required"`
	Keywords          []string                `json:"keywords,omitempty"`
	ProductivityScore *int                    `json:"productivity_score,omitempty"`
	FocusScore        *int                    `json:"focus_score,omitempty"`
}

// AddManualTag handles POST /api/sessions/:id/tags, behind
// add_manual_tag(id, tag). The tag is stamped TagSourceManual with
// confidence 1.0 so it round-trips distinctly from provider-produced tags.
func (h *Handlers) AddManualTag(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	var req addManualTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	tag := models.ActivityTag{
		Category:          req.Category,
		Confidence:        1.0,
		Keywords:          req.Keywords,
		ProductivityScore: req.ProductivityScore,
		FocusScore:        req.FocusScore,
	}

	if err := db.AddManualTag(id, tag); err != nil {
		respondError(c, errs.Wrap(errs.DatabaseBusy, "failed to add tag", err))
		return
	}

	sess, err := db.GetSession(id)
	if err != nil || sess == nil {
		c.Status(http.StatusNoContent)
		return
	}
	respondData(c, sess)
}
