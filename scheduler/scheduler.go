// Package scheduler drives the four periodic pipeline stages — capture,
// segmentation, analysis, and video synthesis — plus the retention sweep,
// and exposes on-demand entry points the api package uses for
// "analyze now" / "generate video now" requests.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/deletexiumu/screen-analyzer/capture"
	"github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/db"
	"github.com/deletexiumu/screen-analyzer/llm"
	"github.com/deletexiumu/screen-analyzer/log"
	"github.com/deletexiumu/screen-analyzer/models"
	"github.com/deletexiumu/screen-analyzer/notifications"
	"github.com/deletexiumu/screen-analyzer/retention"
	"github.com/deletexiumu/screen-analyzer/segmenter"
	"github.com/deletexiumu/screen-analyzer/videosynth"
)

var logger = log.GetLogger("SCHEDULER")

const holderName = "scheduler"

const (
	analysisPollBatch = 5
	videoPollBatch    = 5
)

// Scheduler owns the gocron jobs and the bounded on-demand queues. Jobs are
// tracked in a map keyed by name so ApplyConfig can remove and re-add a job
// with a new interval rather than leaving two copies running.
type Scheduler struct {
	mu   sync.Mutex
	cron gocron.Scheduler
	jobs map[string]gocron.Job

	engine    *capture.Engine
	seg       *segmenter.Segmenter
	synth     *videosynth.Synthesizer
	orch      *llm.Orchestrator
	retention *retention.Service
	notif     *notifications.Service

	cfg config.ConfigValue

	analysisQueue *workQueue
	videoQueue    *workQueue

	// videoSpeedOverrides holds a one-shot speed multiplier for a session
	// queued via RequestVideo, consumed and cleared by runVideo. Keeping it
	// out of cfg means the override never persists past the request it was
	// made for.
	videoSpeedOverrides sync.Map
}

func New(engine *capture.Engine, seg *segmenter.Segmenter, synth *videosynth.Synthesizer, orch *llm.Orchestrator, ret *retention.Service, notif *notifications.Service, cfg config.ConfigValue) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	s := &Scheduler{
		cron:      cron,
		jobs:      make(map[string]gocron.Job),
		engine:    engine,
		seg:       seg,
		synth:     synth,
		orch:      orch,
		retention: ret,
		notif:     notif,
		cfg:       cfg,
	}
	s.analysisQueue = newWorkQueue("analysis", 64, 2, s.runAnalysis)
	s.videoQueue = newWorkQueue("video", 64, 2, s.runVideo)
	return s, nil
}

// Start registers every periodic job at the current config's cadence and
// starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.addJobLocked("capture", time.Duration(s.cfg.CaptureInterval)*time.Second, s.tickCapture); err != nil {
		return err
	}
	if err := s.addJobLocked("segment", time.Duration(s.cfg.SummaryInterval)*time.Minute, s.tickSegment); err != nil {
		return err
	}
	if err := s.addJobLocked("analysis-poll", time.Duration(s.cfg.SummaryInterval)*time.Minute, s.pollAnalysis); err != nil {
		return err
	}
	if err := s.addJobLocked("video-poll", 30*time.Second, s.pollVideo); err != nil {
		return err
	}
	if err := s.addJobLocked("retention", time.Hour, s.runRetention); err != nil {
		return err
	}

	s.cron.Start()
	logger.Info().Msg("scheduler started")
	return nil
}

// Stop asks every job to stop, then waits up to deadline for the on-demand
// queue workers to finish the item each is running; items still waiting in
// a queue are not processed.
func (s *Scheduler) Stop(deadline time.Duration) error {
	if err := s.cron.Shutdown(); err != nil {
		logger.Warn().Err(err).Msg("cron shutdown error")
	}

	deviceName, _ := s.engine.Identity()
	if err := s.seg.Flush(deviceName); err != nil {
		logger.Warn().Err(err).Msg("failed to flush open session at shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.analysisQueue.Stop()
		s.videoQueue.Stop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(deadline):
		return fmt.Errorf("scheduler: shutdown did not complete within %s", deadline)
	}
}

// ApplyConfig is a config.Subscriber: a changed capture_interval reschedules
// the capture job, and a changed summary_interval reschedules both the
// segmentation job and the analysis-poll job since both are driven off of
// it. retention_days is read fresh by runRetention on its next tick, so no
// rescheduling is needed there.
func (s *Scheduler) ApplyConfig(cv config.ConfigValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevCaptureInterval := s.cfg.CaptureInterval
	prevSummaryInterval := s.cfg.SummaryInterval
	s.cfg = cv

	if cv.CaptureInterval != prevCaptureInterval {
		if err := s.addJobLocked("capture", time.Duration(cv.CaptureInterval)*time.Second, s.tickCapture); err != nil {
			logger.Warn().Err(err).Msg("failed to reschedule capture job")
		}
	}

	if cv.SummaryInterval != prevSummaryInterval {
		if err := s.addJobLocked("segment", time.Duration(cv.SummaryInterval)*time.Minute, s.tickSegment); err != nil {
			logger.Warn().Err(err).Msg("failed to reschedule segmentation job")
		}
		if err := s.addJobLocked("analysis-poll", time.Duration(cv.SummaryInterval)*time.Minute, s.pollAnalysis); err != nil {
			logger.Warn().Err(err).Msg("failed to reschedule analysis-poll job")
		}
	}
}

// addJobLocked removes any existing job by that name and installs a fresh
// one at the given interval. Caller holds s.mu.
func (s *Scheduler) addJobLocked(name string, interval time.Duration, fn func()) error {
	if existing, ok := s.jobs[name]; ok {
		if err := s.cron.RemoveJob(existing.ID()); err != nil {
			logger.Warn().Err(err).Str("job", name).Msg("failed to remove previous job")
		}
	}

	job, err := s.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
	)
	if err != nil {
		return fmt.Errorf("scheduler: register job %s: %w", name, err)
	}
	s.jobs[name] = job
	return nil
}

func (s *Scheduler) tickCapture() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.engine.Tick(ctx); err != nil {
		logger.Warn().Err(err).Msg("capture tick failed")
	}
}

// tickSegment runs on the summary_interval cadence, decoupled from capture's
// own interval, so segmentation stays cheap relative to the capture loop.
func (s *Scheduler) tickSegment() {
	deviceName, deviceType := s.engine.Identity()
	if err := s.seg.Tick(deviceName, deviceType); err != nil {
		logger.Warn().Err(err).Msg("segmenter tick failed")
	}
}

func (s *Scheduler) pollAnalysis() {
	sessions, err := db.ListSessionsByState(models.AnalysisClosed, analysisPollBatch)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to poll closed sessions")
		return
	}
	for _, sess := range sessions {
		s.analysisQueue.Submit(sess.ID)
	}
}

func (s *Scheduler) runAnalysis(sessionID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.orch.AnalyzeSession(ctx, sessionID, holderName); err != nil {
		logger.Warn().Err(err).Int64("session_id", sessionID).Msg("analysis failed")
		s.notif.NotifyAnalysisStateChange(sessionID, string(models.AnalysisFailed))
		return
	}
	s.notif.NotifyAnalysisStateChange(sessionID, string(models.AnalysisAnalyzed))

	if err := s.orch.GenerateTimeline(ctx, sessionID); err != nil {
		logger.Warn().Err(err).Int64("session_id", sessionID).Msg("timeline generation failed")
	}

	if sess, err := db.GetSession(sessionID); err == nil && sess != nil {
		date := time.UnixMilli(sess.EndTimeMs).UTC().Format("2006-01-02")
		if err := s.orch.InvalidateDay(date); err != nil {
			logger.Warn().Err(err).Str("date", date).Msg("failed to invalidate day summary cache")
		}
	}

	s.mu.Lock()
	autoGenerate := s.cfg.VideoConfig.AutoGenerate
	s.mu.Unlock()
	if autoGenerate {
		s.videoQueue.Submit(sessionID)
	}
}

func (s *Scheduler) pollVideo() {
	s.mu.Lock()
	autoGenerate := s.cfg.VideoConfig.AutoGenerate
	s.mu.Unlock()
	if !autoGenerate {
		return
	}

	sessions, err := db.ListSessionsByState(models.AnalysisAnalyzed, videoPollBatch)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to poll analyzed sessions")
		return
	}
	for _, sess := range sessions {
		if sess.VideoPath != nil {
			continue
		}
		s.videoQueue.Submit(sess.ID)
	}
}

func (s *Scheduler) runVideo(sessionID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Minute)
	defer cancel()

	speedOverride := 0
	if v, ok := s.videoSpeedOverrides.LoadAndDelete(sessionID); ok {
		speedOverride = v.(int)
	}

	videoPath, err := s.synth.Synthesize(ctx, sessionID, holderName, speedOverride)
	if err != nil {
		logger.Warn().Err(err).Int64("session_id", sessionID).Msg("video synthesis failed")
		return
	}
	s.notif.NotifyVideoReady(sessionID, videoPath)
}

func (s *Scheduler) runRetention() {
	s.mu.Lock()
	days := s.cfg.RetentionDays
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := s.retention.Sweep(ctx, days); err != nil {
		logger.Warn().Err(err).Msg("retention sweep failed")
	}
}

// RequestAnalysis is the on-demand entry point behind
// POST /api/sessions/{id}/analyze.
func (s *Scheduler) RequestAnalysis(sessionID int64) bool {
	return s.analysisQueue.Submit(sessionID)
}

// RequestVideo is the on-demand entry point behind
// POST /api/sessions/{id}/video.
func (s *Scheduler) RequestVideo(sessionID int64, speedMultiplier int) bool {
	if speedMultiplier > 0 {
		s.videoSpeedOverrides.Store(sessionID, speedMultiplier)
	}
	return s.videoQueue.Submit(sessionID)
}

// TriggerAnalysisNow is the on-demand entry point behind trigger_analysis():
// it enqueues every closed session immediately rather than waiting for the
// next analysis-poll tick, and reports how many it queued.
func (s *Scheduler) TriggerAnalysisNow() (int, error) {
	sessions, err := db.ListSessionsByState(models.AnalysisClosed, 1000)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, sess := range sessions {
		if s.analysisQueue.Submit(sess.ID) {
			queued++
		}
	}
	return queued, nil
}

// ForceAnalysis is the on-demand entry point behind
// retry_session_analysis(id): it resets the session back to closed
// (overriding failed/too_short/analyzed) and submits it, regardless of
// whatever the poll-driven queue has already seen.
func (s *Scheduler) ForceAnalysis(sessionID int64) error {
	if err := db.CloseSession(sessionID, models.AnalysisClosed); err != nil {
		return err
	}
	s.analysisQueue.Submit(sessionID)
	return nil
}
