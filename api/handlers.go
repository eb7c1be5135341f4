package api

import (
	"github.com/deletexiumu/screen-analyzer/capture"
	"github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/llm"
	"github.com/deletexiumu/screen-analyzer/notifications"
	"github.com/deletexiumu/screen-analyzer/retention"
	"github.com/deletexiumu/screen-analyzer/scheduler"
)

// Handlers holds every component the command surface calls into. None of
// the methods hung off it contain pipeline logic of their own — they
// translate a request into a call on one of these and shape the response.
type Handlers struct {
	cfgMgr    *config.Manager
	engine    *capture.Engine
	sched     *scheduler.Scheduler
	orch      *llm.Orchestrator
	retention *retention.Service
	notif     *notifications.Service
	framesDir string
	videosDir string
}

// NewHandlers creates a new Handlers instance wired to the running pipeline.
func NewHandlers(cfgMgr *config.Manager, engine *capture.Engine, sched *scheduler.Scheduler, orch *llm.Orchestrator, ret *retention.Service, notif *notifications.Service, framesDir, videosDir string) *Handlers {
	return &Handlers{
		cfgMgr:    cfgMgr,
		engine:    engine,
		sched:     sched,
		orch:      orch,
		retention: ret,
		notif:     notif,
		framesDir: framesDir,
		videosDir: videosDir,
	}
}
