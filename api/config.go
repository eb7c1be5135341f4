package api

import (
	"github.com/gin-gonic/gin"

	cfgpkg "github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/errs"
)

// GetAppConfig handles GET /api/config, behind get_app_config().
func (h *Handlers) GetAppConfig(c *gin.Context) {
	respondData(c, h.cfgMgr.Get())
}

// UpdateConfig handles PUT /api/config, behind update_config(config). The
// Manager validates and atomically persists before fanning the new value
// out to every subscriber (capture, scheduler, video synthesizer, active
// LLM provider) — on failure, nothing changes.
func (h *Handlers) UpdateConfig(c *gin.Context) {
	var next cfgpkg.ConfigValue
	if err := c.ShouldBindJSON(&next); err != nil {
		respondBadRequest(c, "invalid config body")
		return
	}

	if err := h.cfgMgr.Update(next); err != nil {
		if invalid, ok := err.(*cfgpkg.ErrConfigInvalid); ok {
			respondError(c, errs.New(errs.ConfigInvalid, invalid.Error()))
			return
		}
		respondError(c, errs.Wrap(errs.StorageIO, "failed to persist config", err))
		return
	}

	h.notif.NotifyConfigChanged()
	respondData(c, h.cfgMgr.Get())
}
