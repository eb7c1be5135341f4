package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/deletexiumu/screen-analyzer/db"
	"github.com/deletexiumu/screen-analyzer/models"
)

// Config tunes sampling and retry policy, independent of any one provider.
type Config struct {
	MaxFramesPerCall int
	MaxRetries       int
	RetryBaseDelay   time.Duration
	CallTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxFramesPerCall: 30,
		MaxRetries:       2,
		RetryBaseDelay:   time.Second,
		CallTimeout:      60 * time.Second,
	}
}

// Orchestrator owns the policy shared by every provider: which frames to
// sample, how many times to retry, how to repair a malformed response, and
// what to write to the llm_calls audit trail. None of this lives in a
// provider implementation.
type Orchestrator struct {
	cfg       Config
	active    *ActiveCell
	framesDir string
}

func NewOrchestrator(active *ActiveCell, framesDir string, cfg Config) *Orchestrator {
	return &Orchestrator{cfg: cfg, active: active, framesDir: framesDir}
}

// ApplyConfig replaces the sampling and retry policy. It takes an llm.Config
// rather than a config.ConfigValue, so it is not a config.Subscriber.
func (o *Orchestrator) ApplyConfig(cfg Config) {
	o.cfg = cfg
}

// AnalyzeSession samples a session's frames, asks the active provider for a
// title/summary/tags, and writes both the session row and an llm_calls
// audit record. A lease prevents the scheduler and an on-demand request
// from analyzing the same session concurrently.
func (o *Orchestrator) AnalyzeSession(ctx context.Context, sessionID int64, holder string) error {
	provider := o.active.Get()
	if provider == nil || !provider.IsConfigured() {
		return fmt.Errorf("no configured llm provider active")
	}

	acquired, err := db.AcquireLease(sessionID, "analysis", holder, 5*60*1000)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("session %d: analysis already in progress", sessionID)
	}
	defer db.ReleaseLease(sessionID, "analysis", holder)

	if err := db.CloseSession(sessionID, models.AnalysisAnalyzing); err != nil {
		return err
	}

	frames, err := o.sampleFrames(sessionID)
	if err != nil {
		o.fail(sessionID, err)
		return err
	}
	if len(frames) == 0 {
		err := fmt.Errorf("session %d: no non-black frames to analyze", sessionID)
		o.fail(sessionID, err)
		return err
	}

	var summary models.SessionSummary
	callErr := o.callWithSchemaRepair(ctx, func(ctx context.Context, repairHint string) error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()

		start := time.Now()
		s, result, err := provider.AnalyzeFrames(callCtx, frames, repairHint)
		o.audit(&sessionID, provider.Name(), time.Since(start), result, err)
		if err != nil {
			return err
		}
		summary = s
		return nil
	})

	if callErr != nil {
		o.fail(sessionID, callErr)
		return callErr
	}

	normalizeTags(&summary)

	return db.UpdateSessionAnalysis(sessionID, summary, models.AnalysisAnalyzed, "")
}

// GenerateTimeline chapters an already-analyzed session. It is a separate
// call from AnalyzeSession because not every provider supports it
// (Capabilities.SupportsTimeline), and a timeline failure must not regress
// an otherwise-successful analysis. It runs the provider's two-stage
// pipeline: SegmentVideo turns the sampled frames into coarse VideoSegments,
// then GenerateTimeline turns those segments into labeled TimelineCards,
// carrying forward any cards already on the session for continuity.
func (o *Orchestrator) GenerateTimeline(ctx context.Context, sessionID int64) error {
	provider := o.active.Get()
	if provider == nil || !provider.IsConfigured() || !provider.Capabilities().SupportsTimeline {
		return fmt.Errorf("active provider does not support timeline generation")
	}

	sess, err := db.GetSession(sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %d not found", sessionID)
	}

	frames, err := o.sampleFrames(sessionID)
	if err != nil {
		return err
	}

	durationMinutes := int((sess.EndTimeMs-sess.StartTimeMs+59_999)/60_000)
	if durationMinutes < 1 {
		durationMinutes = 1
	}

	var segments []models.VideoSegment
	err = o.callWithSchemaRepair(ctx, func(ctx context.Context, repairHint string) error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()

		start := time.Now()
		segs, result, err := provider.SegmentVideo(callCtx, frames, durationMinutes, repairHint)
		o.audit(&sessionID, provider.Name(), time.Since(start), result, err)
		if err != nil {
			return err
		}
		segments = segs
		return nil
	})
	if err != nil {
		return err
	}

	var cards []models.TimelineCard
	err = o.callWithSchemaRepair(ctx, func(ctx context.Context, repairHint string) error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()

		start := time.Now()
		c, result, err := provider.GenerateTimeline(callCtx, segments, sess.TimelineCards, repairHint)
		o.audit(&sessionID, provider.Name(), time.Since(start), result, err)
		if err != nil {
			return err
		}
		cards = c
		return nil
	})
	if err != nil {
		return err
	}

	return db.SetTimelineCards(sessionID, cards)
}

// GenerateDaySummary rolls every analyzed session on date up into prose via
// the active provider, caching the result unless forceRefresh is set.
func (o *Orchestrator) GenerateDaySummary(ctx context.Context, date string, dayStartMs, dayEndMs int64, forceRefresh bool) (string, error) {
	if !forceRefresh {
		if cached, ok, err := db.GetDaySummary(date); err != nil {
			return "", err
		} else if ok {
			return cached, nil
		}
	}

	provider := o.active.Get()
	if provider == nil || !provider.IsConfigured() {
		return "", fmt.Errorf("no configured llm provider active")
	}

	sessions, err := db.QueryDaySessions(dayStartMs, dayEndMs)
	if err != nil {
		return "", err
	}

	var briefs []models.SessionBrief
	for _, s := range sessions {
		if s.AnalysisState != models.AnalysisAnalyzed {
			continue
		}
		briefs = append(briefs, models.SessionBrief{
			SessionID: s.ID, Title: s.Title, Summary: s.Summary, Tags: s.Tags,
			StartMs: s.StartTimeMs, EndMs: s.EndTimeMs, Device: s.DeviceName,
		})
	}

	var summary string
	err = o.callWithSchemaRepair(ctx, func(ctx context.Context, repairHint string) error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()

		start := time.Now()
		s, result, err := provider.GenerateDaySummary(callCtx, briefs, repairHint)
		o.audit(nil, provider.Name(), time.Since(start), result, err)
		if err != nil {
			return err
		}
		summary = s
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := db.PutDaySummary(date, summary); err != nil {
		return "", err
	}
	return summary, nil
}

// InvalidateDay drops the cached day summary for date, called whenever a
// session on that date is re-analyzed.
func (o *Orchestrator) InvalidateDay(date string) error {
	return db.InvalidateDaySummary(date)
}

// sampleFrames loads and evenly samples up to MaxFramesPerCall non-black
// frames from a session, always including the first and last frame, and
// reads their JPEG bytes off disk.
func (o *Orchestrator) sampleFrames(sessionID int64) ([]FrameInput, error) {
	all, err := db.ListFramesInSession(sessionID)
	if err != nil {
		return nil, err
	}

	var usable []*models.FrameRecord
	for _, f := range all {
		if !f.IsBlack && f.FilePath != "" {
			usable = append(usable, f)
		}
	}
	if len(usable) == 0 {
		return nil, nil
	}

	var out []FrameInput
	for _, i := range sampleIndices(len(usable), o.cfg.MaxFramesPerCall) {
		f := usable[i]
		data, err := os.ReadFile(filepath.Join(o.framesDir, f.FilePath))
		if err != nil {
			continue
		}
		out = append(out, FrameInput{TimestampMs: f.TimestampMs, JPEGBytes: data, DisplayIdx: f.DisplayIndex})
	}
	return out, nil
}

// sampleIndices picks up to max evenly spaced indices from [0, n), always
// including 0 and n-1 so the first and last frame survive regardless of
// how the stride rounds.
func sampleIndices(n, max int) []int {
	if n <= max {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	if max <= 1 {
		return []int{0}
	}

	out := make([]int, 0, max)
	seen := make(map[int]bool, max)
	for i := 0; i < max; i++ {
		idx := i * (n - 1) / (max - 1)
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	return out
}

// withRetry retries fn with exponential backoff, but only for transient
// failures (network errors, rate limits, 5xx). A non-transient failure
// (auth, malformed request/response) breaks out immediately since no
// amount of waiting changes the outcome.
func (o *Orchestrator) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := o.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !transient(err) {
			break
		}
	}
	return lastErr
}

// callWithSchemaRepair runs call through withRetry with no repair hint,
// and if the final error is a SchemaRepairError, re-asks exactly once more
// with the parse error appended to the prompt instead of resending an
// identical request. A second schema failure gives up rather than looping.
func (o *Orchestrator) callWithSchemaRepair(ctx context.Context, call func(ctx context.Context, repairHint string) error) error {
	err := o.withRetry(ctx, func(ctx context.Context) error {
		return call(ctx, "")
	})

	var repairErr *SchemaRepairError
	if err == nil || !errors.As(err, &repairErr) {
		return err
	}

	logger.Warn().Err(repairErr).Msg("schema repair: re-asking with parse error appended to prompt")
	return call(ctx, repairErr.Error())
}

func (o *Orchestrator) fail(sessionID int64, err error) {
	_ = db.UpdateSessionAnalysis(sessionID, models.SessionSummary{}, models.AnalysisFailed, err.Error())
}

func (o *Orchestrator) audit(sessionID *int64, provider string, latency time.Duration, result CallResult, err error) {
	var id int64
	if sessionID != nil {
		id = *sessionID
	}
	call := &models.LLMCall{
		ID:               uuid.NewString(),
		Provider:         provider,
		Model:            result.Model,
		LatencyMs:        latency.Milliseconds(),
		InputTokenCount:  result.InputTokenCount,
		OutputTokenCount: result.OutputTokenCount,
		RequestDigest:    result.RequestDigest,
		ResponseDigest:   result.ResponseDigest,
		CreatedAtMs:      time.Now().UnixMilli(),
	}
	if sessionID != nil {
		call.SessionID = &id
	}
	if err != nil {
		call.Error = err.Error()
	}
	if auditErr := db.InsertLLMCall(call); auditErr != nil {
		logger.Warn().Err(auditErr).Msg("failed to write llm_calls audit row")
	}
}

// normalizeTags maps every tag's coarse category through FineToCoarse in
// case a provider (incorrectly) returned a fine-grained label directly in
// the Category field rather than a keyword.
func normalizeTags(summary *models.SessionSummary) {
	for i, t := range summary.Tags {
		switch t.Category {
		case models.CategoryWork, models.CategoryCommunication, models.CategoryLearning,
			models.CategoryPersonal, models.CategoryIdle, models.CategoryOther:
			continue
		default:
			coarse, kw := FineToCoarse(string(t.Category))
			summary.Tags[i].Category = coarse
			summary.Tags[i].Keywords = append(summary.Tags[i].Keywords, kw)
		}
	}
}
