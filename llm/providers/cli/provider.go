// Package cli implements llm.Provider by shelling out to a locally
// installed vision-capable CLI tool (e.g. a model vendor's own CLI),
// grounded on the same subprocess-transport idiom the CLI SDK example in
// this pack uses: explicit child environment, piped stdin/stdout/stderr,
// and a hard wall-clock timeout rather than trusting the child to exit.
package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/deletexiumu/screen-analyzer/errs"
	"github.com/deletexiumu/screen-analyzer/llm"
	"github.com/deletexiumu/screen-analyzer/log"
	"github.com/deletexiumu/screen-analyzer/models"
)

var logger = log.GetLogger("LLM_CLI")

type settings struct {
	BinaryPath string            `json:"binary_path"`
	Model      string            `json:"model"`
	Env        map[string]string `json:"env"`
	TimeoutSec int               `json:"timeout_sec"`
}

// request is the JSON payload written to the child's stdin: a system
// prompt and the session's sampled frames, base64-inlined. The binary is
// expected to print its raw text response (JSON or JSON-in-prose) to
// stdout and exit 0.
type request struct {
	System string    `json:"system"`
	Model  string    `json:"model"`
	Frames []frameIn `json:"frames"`
}

type frameIn struct {
	TimestampMs int64  `json:"timestamp_ms"`
	DisplayIdx  int    `json:"display_idx"`
	JPEGBase64  string `json:"jpeg_base64"`
}

// Provider spawns settings.BinaryPath once per call; there is no
// persistent subprocess or streaming protocol, unlike the interactive CLI
// SDK this package borrows its exec idiom from.
type Provider struct {
	mu  sync.RWMutex
	cfg settings
}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Name() string { return "cli" }

func (p *Provider) Capabilities() llm.Capabilities {
	return llm.Capabilities{SupportsVision: true, SupportsTimeline: true, SupportsDaySummary: true}
}

func (p *Provider) Configure(raw json.RawMessage) error {
	var s settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("cli: invalid config: %w", err)
	}
	if s.BinaryPath == "" {
		return fmt.Errorf("cli: binary_path required")
	}
	if s.TimeoutSec <= 0 {
		s.TimeoutSec = 90
	}

	if _, err := exec.LookPath(s.BinaryPath); err != nil {
		return fmt.Errorf("cli: binary_path %q not found: %w", s.BinaryPath, err)
	}

	p.mu.Lock()
	p.cfg = s
	p.mu.Unlock()

	logger.Info().Str("binary", s.BinaryPath).Msg("cli provider configured")
	return nil
}

func (p *Provider) IsConfigured() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.BinaryPath != ""
}

func (p *Provider) AnalyzeFrames(ctx context.Context, frames []llm.FrameInput, repairHint string) (models.SessionSummary, llm.CallResult, error) {
	raw, result, err := p.run(ctx, withRepairHint(analysisSystemPrompt, repairHint), frames)
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
	raw, result, err := p.run(ctx, withRepairHint(prompt, repairHint), frames)
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
	prompt := withRepairHint(timelineSystemPrompt, repairHint) + "\n\n" + userText
	raw, result, err := p.run(ctx, prompt, nil)
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
	prompt := withRepairHint(daySummarySystemPrompt, repairHint) + "\n\n" + sb.String()
	return p.run(ctx, prompt, nil)
}

// run spawns the configured binary, writes a JSON request to stdin, and
// returns stdout verbatim. Failures carry the stderr tail so the
// orchestrator's audit row captures why the child failed.
func (p *Provider) run(ctx context.Context, systemPrompt string, frames []llm.FrameInput) (string, llm.CallResult, error) {
	p.mu.RLock()
	cfg := p.cfg
	p.mu.RUnlock()
	result := llm.CallResult{Model: cfg.Model}
	if cfg.BinaryPath == "" {
		return "", result, errs.New(errs.LLMAuth, "cli: not configured")
	}

	req := request{System: systemPrompt, Model: cfg.Model}
	for _, f := range frames {
		req.Frames = append(req.Frames, frameIn{
			TimestampMs: f.TimestampMs,
			DisplayIdx:  f.DisplayIdx,
			JPEGBase64:  base64.StdEncoding.EncodeToString(f.JPEGBytes),
		})
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", result, err
	}
	result.RequestDigest = llm.Digest(payload)

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(callCtx, cfg.BinaryPath)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = buildChildEnv(cfg.Env)
	setPlatformAttrs(cmd)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", result, err
	}

	var stderrTail strings.Builder
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			if stderrTail.Len() < 4096 {
				stderrTail.WriteString(scanner.Text())
				stderrTail.WriteByte('\n')
			}
		}
	}()

	if err := cmd.Start(); err != nil {
		return "", result, errs.Wrap(errs.LLMAuth, fmt.Sprintf("cli: failed to start %s", cfg.BinaryPath), err)
	}
	runErr := cmd.Wait()
	<-done

	if callCtx.Err() == context.DeadlineExceeded {
		return "", result, errs.New(errs.LLMUnavailable, fmt.Sprintf("cli: %s timed out after %ds", cfg.BinaryPath, cfg.TimeoutSec))
	}
	if runErr != nil {
		return "", result, errs.New(errs.LLMUnavailable, fmt.Sprintf("cli: %s failed: %v: %s", cfg.BinaryPath, runErr, stderrTail.String()))
	}

	result.ResponseDigest = llm.Digest(stdout.Bytes())
	return stdout.String(), result, nil
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

func buildChildEnv(extra map[string]string) []string {
	env := []string{}
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
