// Package llm orchestrates vision-LLM analysis of a session's frames:
// provider selection, prompt assembly, sampling, retries, schema repair,
// and the audit trail written to llm_calls.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/deletexiumu/screen-analyzer/models"
)

// FrameInput is one sampled frame handed to a provider, already loaded
// from disk and ready to inline.
type FrameInput struct {
	TimestampMs int64
	JPEGBytes   []byte
	DisplayIdx  int
}

// Capabilities describes what a provider can do, so the Orchestrator can
// skip a step (e.g. timeline chaptering) a provider doesn't support rather
// than calling it and getting an error back.
type Capabilities struct {
	SupportsVision    bool
	SupportsTimeline  bool
	SupportsDaySummary bool
}

// Provider is the pluggable vision-LLM backend interface. Exactly one
// provider is active at a time (see ActiveCell); all registered providers
// are discoverable for configuration purposes.
type Provider interface {
	Name() string
	Capabilities() Capabilities

	// Configure applies a provider-specific JSON config blob (API keys,
	// base URLs, model names). Called whenever config.Manager fans out a
	// new LLMSettings.Config.
	Configure(raw json.RawMessage) error

	// IsConfigured reports whether Configure has supplied enough to make a
	// call — callers skip invoking an unconfigured provider rather than
	// letting the request fail downstream.
	IsConfigured() bool

	// AnalyzeFrames produces a session's title/summary/tags from a sampled
	// frame set. repairHint is empty on a normal call; the Orchestrator
	// sets it to the previous attempt's parse error on a schema-repair
	// re-ask, and the provider appends it to the prompt.
	AnalyzeFrames(ctx context.Context, frames []FrameInput, repairHint string) (models.SessionSummary, CallResult, error)

	// SegmentVideo chapters a session's frames into coarse VideoSegments
	// (timestamp range plus description), the first stage of timeline
	// generation. durationMinutes is the session's wall-clock length.
	SegmentVideo(ctx context.Context, frames []FrameInput, durationMinutes int, repairHint string) ([]models.VideoSegment, CallResult, error)

	// GenerateTimeline turns SegmentVideo's output into labeled
	// TimelineCards. previousCards carries earlier cards for continuity
	// when a session is being re-chaptered; nil on a first pass.
	GenerateTimeline(ctx context.Context, segments []models.VideoSegment, previousCards []models.TimelineCard, repairHint string) ([]models.TimelineCard, CallResult, error)

	// GenerateDaySummary rolls up a day's SessionBriefs into prose.
	GenerateDaySummary(ctx context.Context, briefs []models.SessionBrief, repairHint string) (string, CallResult, error)
}

// CallResult is what a provider's underlying transport observed during one
// call, returned alongside the parsed value (and on error, partially
// filled) so the Orchestrator's audit row carries real model/token/digest
// data instead of the zero values a never-constructed struct would leave.
type CallResult struct {
	Model            string
	InputTokenCount  int
	OutputTokenCount int
	RequestDigest    string
	ResponseDigest   string
}

// Digest returns a short stable hex fingerprint of data, used for the audit
// trail's request/response digest columns so a call can be identified
// without persisting its full payload (which may inline JPEG frames).
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
