package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures every command-surface route against one Handlers
// instance, grouped by resource.
func SetupRoutes(r *gin.Engine, h *Handlers) {
	apiGroup := r.Group("/api")

	apiGroup.GET("/activities", h.GetActivities)

	apiGroup.GET("/days/:date/sessions", h.GetDaySessions)
	apiGroup.GET("/days/:date/summary", h.GetDaySummary)

	apiGroup.GET("/sessions/:id", h.GetSessionDetail)
	apiGroup.DELETE("/sessions/:id", h.DeleteSession)
	apiGroup.POST("/sessions/:id/retry", h.RetrySessionAnalysis)
	apiGroup.POST("/sessions/:id/video", h.GenerateVideo)
	apiGroup.POST("/sessions/:id/tags", h.AddManualTag)

	apiGroup.POST("/analysis/trigger", h.TriggerAnalysis)

	apiGroup.GET("/config", h.GetAppConfig)
	apiGroup.PUT("/config", h.UpdateConfig)

	apiGroup.POST("/capture/toggle", h.ToggleCapture)

	apiGroup.GET("/system/status", h.GetSystemStatus)
	apiGroup.GET("/system/status/stream", h.SystemStatusStream)

	apiGroup.GET("/storage/stats", h.GetStorageStats)
	apiGroup.POST("/storage/cleanup", h.CleanupStorage)

	apiGroup.POST("/llm/test", h.TestLLMAPI)

	r.GET("/frames/*path", h.ServeFrame)
	r.GET("/videos/*path", h.ServeVideo)
}
