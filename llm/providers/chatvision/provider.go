// Package chatvision implements llm.Provider against any OpenAI-compatible
// chat completions endpoint with vision input (OpenAI itself, or a
// self-hosted gateway exposing the same wire format).
package chatvision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/deletexiumu/screen-analyzer/errs"
	"github.com/deletexiumu/screen-analyzer/llm"
	"github.com/deletexiumu/screen-analyzer/log"
	"github.com/deletexiumu/screen-analyzer/models"
)

var logger = log.GetLogger("LLM_CHATVISION")

// settings is the json.RawMessage shape accepted by Configure, mirroring
// ConfigValue.LLMConfig's per-provider sub-object.
type settings struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
}

// Provider wraps a go-openai client behind a swappable settings struct so
// Configure can be called again after the client is already in use.
type Provider struct {
	mu     sync.RWMutex
	client *openai.Client
	cfg    settings
}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string { return "chatvision" }

func (p *Provider) Capabilities() llm.Capabilities {
	return llm.Capabilities{SupportsVision: true, SupportsTimeline: true, SupportsDaySummary: true}
}

// Configure builds a new client from raw, replacing whatever client was
// previously in use. Called with the active provider's config sub-object
// whenever config.Manager applies a change.
func (p *Provider) Configure(raw json.RawMessage) error {
	var s settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("chatvision: invalid config: %w", err)
	}
	if s.APIKey == "" {
		return fmt.Errorf("chatvision: api_key required")
	}
	if s.Model == "" {
		s.Model = "gpt-4o-mini"
	}
	if s.Temperature == 0 {
		s.Temperature = 0.2
	}

	clientConfig := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		clientConfig.BaseURL = s.BaseURL
	}

	p.mu.Lock()
	p.client = openai.NewClientWithConfig(clientConfig)
	p.cfg = s
	p.mu.Unlock()

	logger.Info().Str("model", s.Model).Str("base_url", s.BaseURL).Msg("chatvision configured")
	return nil
}

func (p *Provider) IsConfigured() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil
}

func (p *Provider) AnalyzeFrames(ctx context.Context, frames []llm.FrameInput, repairHint string) (models.SessionSummary, llm.CallResult, error) {
	raw, result, err := p.complete(ctx, withRepairHint(analysisSystemPrompt, repairHint), frames)
	if err != nil {
		return models.SessionSummary{}, result, err
	}

	var out struct {
		Title           string               `json:"title"`
		Summary         string               `json:"summary"`
		DetailedSummary string               `json:"detailed_summary"`
		Tags            []models.ActivityTag `json:"tags"`
	}
	if err := llm.ParseStructured(raw, &out); err != nil {
		return models.SessionSummary{}, result, err
	}
	for i := range out.Tags {
		out.Tags[i].Source = models.TagSourceLLM
	}
	return models.SessionSummary{Title: out.Title, Summary: out.Summary, DetailedSummary: out.DetailedSummary, Tags: out.Tags}, result, nil
}

func (p *Provider) SegmentVideo(ctx context.Context, frames []llm.FrameInput, durationMinutes int, repairHint string) ([]models.VideoSegment, llm.CallResult, error) {
	prompt := fmt.Sprintf("%s\n\nThis session spans %d minutes.", segmentSystemPrompt, durationMinutes)
	raw, result, err := p.complete(ctx, withRepairHint(prompt, repairHint), frames)
	if err != nil {
		return nil, result, err
	}

	var out struct {
		Segments []models.VideoSegment `json:"segments"`
	}
	if err := llm.ParseStructured(raw, &out); err != nil {
		return nil, result, err
	}
	return out.Segments, result, nil
}

func (p *Provider) GenerateTimeline(ctx context.Context, segments []models.VideoSegment, previousCards []models.TimelineCard, repairHint string) ([]models.TimelineCard, llm.CallResult, error) {
	userText := buildSegmentsText(segments) + buildPreviousCardsText(previousCards)
	raw, result, err := p.completeText(ctx, withRepairHint(timelineSystemPrompt, repairHint), userText)
	if err != nil {
		return nil, result, err
	}

	var out struct {
		Cards []models.TimelineCard `json:"cards"`
	}
	if err := llm.ParseStructured(raw, &out); err != nil {
		return nil, result, err
	}
	return out.Cards, result, nil
}

func (p *Provider) GenerateDaySummary(ctx context.Context, briefs []models.SessionBrief, repairHint string) (string, llm.CallResult, error) {
	var sb strings.Builder
	for _, b := range briefs {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", b.Title, b.Summary))
	}
	return p.completeText(ctx, withRepairHint(daySummarySystemPrompt, repairHint), sb.String())
}

// complete sends a system prompt plus every sampled frame as an inlined
// base64 image part, and returns the raw assistant text for the
// orchestrator's schema-repair layer to parse.
func (p *Provider) complete(ctx context.Context, systemPrompt string, frames []llm.FrameInput) (string, llm.CallResult, error) {
	p.mu.RLock()
	client, cfg := p.client, p.cfg
	p.mu.RUnlock()
	result := llm.CallResult{Model: cfg.Model}
	if client == nil {
		return "", result, fmt.Errorf("chatvision: not configured")
	}

	parts := make([]openai.ChatMessagePart, 0, len(frames)+1)
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: "Frames are ordered chronologically, earliest first.",
	})
	for _, f := range frames {
		encoded := base64.StdEncoding.EncodeToString(f.JPEGBytes)
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:image/jpeg;base64," + encoded,
				Detail: openai.ImageURLDetailLow,
			},
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}
	return p.send(ctx, client, req, result)
}

// completeText is complete's text-only counterpart, used for the timeline
// and day-summary stages which reason over prose rather than images.
func (p *Provider) completeText(ctx context.Context, systemPrompt, userText string) (string, llm.CallResult, error) {
	p.mu.RLock()
	client, cfg := p.client, p.cfg
	p.mu.RUnlock()
	result := llm.CallResult{Model: cfg.Model}
	if client == nil {
		return "", result, fmt.Errorf("chatvision: not configured")
	}

	req := openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
	}
	return p.send(ctx, client, req, result)
}

// send issues req, fills result's digests and token counts from the round
// trip (hashing the request/response structs since the go-openai client
// doesn't expose the wire bytes directly), and returns the reply text.
func (p *Provider) send(ctx context.Context, client *openai.Client, req openai.ChatCompletionRequest, result llm.CallResult) (string, llm.CallResult, error) {
	if reqBytes, err := json.Marshal(req); err == nil {
		result.RequestDigest = llm.Digest(reqBytes)
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", result, classifyAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", result, fmt.Errorf("chatvision: empty response")
	}
	if respBytes, err := json.Marshal(resp); err == nil {
		result.ResponseDigest = llm.Digest(respBytes)
	}
	if resp.Model != "" {
		result.Model = resp.Model
	}
	result.InputTokenCount = resp.Usage.PromptTokens
	result.OutputTokenCount = resp.Usage.CompletionTokens
	return resp.Choices[0].Message.Content, result, nil
}

// classifyAPIError tags an OpenAI-compatible API error with the errs.Kind
// its HTTP status implies, so the Orchestrator's retry policy can tell a
// fixed auth problem from a rate limit worth backing off and retrying.
func classifyAPIError(err error) error {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
		return errs.Wrap(errs.LLMAuth, "chatvision", err)
	case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
		return errs.Wrap(errs.LLMRateLimited, "chatvision", err)
	case apiErr.HTTPStatusCode >= 500:
		return errs.Wrap(errs.LLMUnavailable, "chatvision", err)
	case apiErr.HTTPStatusCode >= 400:
		return errs.Wrap(errs.LLMBadSchema, "chatvision", err)
	default:
		return err
	}
}

// withRepairHint appends a schema-repair instruction to systemPrompt when
// hint is non-empty, asking the model to fix the exact parse failure
// rather than resending an unmodified prompt and hoping for a better roll.
func withRepairHint(systemPrompt, hint string) string {
	if hint == "" {
		return systemPrompt
	}
	return fmt.Sprintf("%s\n\nYour previous response could not be parsed as valid JSON: %s\nRespond again with valid JSON only, fixing that problem.", systemPrompt, hint)
}

// buildSegmentsText renders SegmentVideo's output as a plain MM:SS-range
// transcript for the text-only GenerateTimeline call.
func buildSegmentsText(segments []models.VideoSegment) string {
	var sb strings.Builder
	for _, s := range segments {
		sb.WriteString(fmt.Sprintf("%s-%s: %s\n", s.StartTimestamp, s.EndTimestamp, s.Description))
	}
	return sb.String()
}

// buildPreviousCardsText adds prior cards as continuity context; empty when
// there are none, so a first pass doesn't mention a concept it has no use
// for.
func buildPreviousCardsText(cards []models.TimelineCard) string {
	if len(cards) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nPreviously generated cards for context, do not repeat them verbatim:\n")
	for _, c := range cards {
		sb.WriteString(fmt.Sprintf("%s-%s %s: %s\n", c.StartTime, c.EndTime, c.Title, c.Summary))
	}
	return sb.String()
}
