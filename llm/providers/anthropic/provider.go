// Package anthropic implements llm.Provider against the Anthropic Messages
// API directly over net/http, in the same hand-rolled-REST-client idiom the
// rest of this codebase uses for vendors with no official Go SDK in use
// here.
package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/deletexiumu/screen-analyzer/errs"
	"github.com/deletexiumu/screen-analyzer/llm"
	"github.com/deletexiumu/screen-analyzer/log"
	"github.com/deletexiumu/screen-analyzer/models"
)

var logger = log.GetLogger("LLM_ANTHROPIC")

const defaultBaseURL = "https://api.anthropic.com"
const apiVersion = "2023-06-01"

type settings struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// Provider talks to /v1/messages directly; there is no official Anthropic
// Go SDK wired into this repo's dependency stack.
type Provider struct {
	mu         sync.RWMutex
	cfg        settings
	httpClient *http.Client
}

func New() *Provider {
	return &Provider{httpClient: &http.Client{Timeout: 90 * time.Second}}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Capabilities() llm.Capabilities {
	return llm.Capabilities{SupportsVision: true, SupportsTimeline: true, SupportsDaySummary: true}
}

func (p *Provider) Configure(raw json.RawMessage) error {
	var s settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("anthropic: invalid config: %w", err)
	}
	if s.APIKey == "" {
		return fmt.Errorf("anthropic: api_key required")
	}
	if s.BaseURL == "" {
		s.BaseURL = defaultBaseURL
	}
	if s.Model == "" {
		s.Model = "claude-3-5-sonnet-latest"
	}

	p.mu.Lock()
	p.cfg = s
	p.mu.Unlock()

	logger.Info().Str("model", s.Model).Msg("anthropic configured")
	return nil
}

func (p *Provider) IsConfigured() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.APIKey != ""
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

// complete assembles a messages request with every sampled frame inlined
// as a base64 image content block and returns the raw response text for
// the caller's ParseStructured step.
func (p *Provider) complete(ctx context.Context, systemPrompt string, frames []llm.FrameInput) (string, llm.CallResult, error) {
	p.mu.RLock()
	cfg := p.cfg
	p.mu.RUnlock()
	result := llm.CallResult{Model: cfg.Model}
	if cfg.APIKey == "" {
		return "", result, fmt.Errorf("anthropic: not configured")
	}

	content := make([]map[string]interface{}, 0, len(frames)+1)
	content = append(content, map[string]interface{}{
		"type": "text",
		"text": "Frames are ordered chronologically, earliest first.",
	})
	for _, f := range frames {
		content = append(content, map[string]interface{}{
			"type": "image",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": "image/jpeg",
				"data":       base64.StdEncoding.EncodeToString(f.JPEGBytes),
			},
		})
	}

	body := map[string]interface{}{
		"model":      cfg.Model,
		"max_tokens": 2048,
		"system":     systemPrompt,
		"messages": []map[string]interface{}{
			{"role": "user", "content": content},
		},
	}

	return p.send(ctx, cfg, body, result)
}

// completeText is complete's text-only counterpart, used for the timeline
// and day-summary stages which reason over prose rather than images.
func (p *Provider) completeText(ctx context.Context, systemPrompt, userText string) (string, llm.CallResult, error) {
	p.mu.RLock()
	cfg := p.cfg
	p.mu.RUnlock()
	result := llm.CallResult{Model: cfg.Model}
	if cfg.APIKey == "" {
		return "", result, fmt.Errorf("anthropic: not configured")
	}

	body := map[string]interface{}{
		"model":      cfg.Model,
		"max_tokens": 2048,
		"system":     systemPrompt,
		"messages": []map[string]interface{}{
			{"role": "user", "content": userText},
		},
	}

	return p.send(ctx, cfg, body, result)
}

// send posts body to /v1/messages, fills result's digests and token counts
// from the round trip, and returns the reply's text content.
func (p *Provider) send(ctx context.Context, cfg settings, body map[string]interface{}, result llm.CallResult) (string, llm.CallResult, error) {
	reqBody, respBody, err := p.post(ctx, cfg, "/v1/messages", body)
	if reqBody != nil {
		result.RequestDigest = llm.Digest(reqBody)
	}
	if err != nil {
		return "", result, err
	}
	result.ResponseDigest = llm.Digest(respBody)

	text, usage, err := extractTextAndUsage(respBody)
	if err != nil {
		return "", result, err
	}
	result.InputTokenCount = usage.InputTokens
	result.OutputTokenCount = usage.OutputTokens
	return text, result, nil
}

func (p *Provider) post(ctx context.Context, cfg settings, endpoint string, body map[string]interface{}) (reqBody, respBody []byte, err error) {
	reqBody, err = json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return reqBody, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return reqBody, nil, err
	}
	defer resp.Body.Close()

	respBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return reqBody, nil, err
	}
	if resp.StatusCode >= 300 {
		msg := fmt.Sprintf("anthropic: status %d: %s", resp.StatusCode, string(respBody))
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return reqBody, nil, errs.New(errs.LLMAuth, msg)
		case resp.StatusCode == http.StatusTooManyRequests:
			return reqBody, nil, errs.New(errs.LLMRateLimited, msg)
		case resp.StatusCode >= 500:
			return reqBody, nil, errs.New(errs.LLMUnavailable, msg)
		default:
			return reqBody, nil, errs.New(errs.LLMBadSchema, msg)
		}
	}
	return reqBody, respBody, nil
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

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func extractTextAndUsage(respBody []byte) (string, usage, error) {
	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage usage `json:"usage"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", usage{}, fmt.Errorf("anthropic: malformed response: %w", err)
	}
	if parsed.Error != nil {
		return "", usage{}, fmt.Errorf("anthropic: %s", parsed.Error.Message)
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", usage{}, fmt.Errorf("anthropic: response had no text content")
	}
	return sb.String(), parsed.Usage, nil
}
