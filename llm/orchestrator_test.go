package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deletexiumu/screen-analyzer/errs"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	o := &Orchestrator{cfg: Config{MaxRetries: 2, RetryBaseDelay: time.Millisecond}}

	attempts := 0
	err := o.withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryExhaustsAndReturnsLastError(t *testing.T) {
	o := &Orchestrator{cfg: Config{MaxRetries: 1, RetryBaseDelay: time.Millisecond}}

	attempts := 0
	err := o.withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("persistent failure")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 2 {
		t.Fatalf("expected MaxRetries+1 attempts, got %d", attempts)
	}
}

func TestWithRetryBreaksImmediatelyOnNonTransientError(t *testing.T) {
	o := &Orchestrator{cfg: Config{MaxRetries: 5, RetryBaseDelay: time.Millisecond}}

	attempts := 0
	err := o.withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return errs.New(errs.LLMAuth, "invalid api key")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-transient error, got %d", attempts)
	}
}

func TestCallWithSchemaRepairReasksOnceWithHint(t *testing.T) {
	o := &Orchestrator{cfg: Config{MaxRetries: 1, RetryBaseDelay: time.Millisecond}}

	var hints []string
	err := o.callWithSchemaRepair(context.Background(), func(ctx context.Context, repairHint string) error {
		hints = append(hints, repairHint)
		if repairHint == "" {
			return &SchemaRepairError{RawText: "not json", Cause: errors.New("invalid character")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected repair re-ask to succeed, got %v", err)
	}
	if len(hints) != 2 || hints[0] != "" || hints[1] == "" {
		t.Fatalf("expected an empty-hint attempt followed by a hinted re-ask, got %+v", hints)
	}
}

func TestCallWithSchemaRepairGivesUpAfterSecondFailure(t *testing.T) {
	o := &Orchestrator{cfg: Config{MaxRetries: 0, RetryBaseDelay: time.Millisecond}}

	attempts := 0
	err := o.callWithSchemaRepair(context.Background(), func(ctx context.Context, repairHint string) error {
		attempts++
		return &SchemaRepairError{RawText: "still not json", Cause: errors.New("invalid character")}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 2 {
		t.Fatalf("expected exactly one repair re-ask (2 total attempts), got %d", attempts)
	}
}

func TestSampleIndicesIncludesFirstAndLast(t *testing.T) {
	indices := sampleIndices(100, 8)
	if indices[0] != 0 {
		t.Fatalf("expected first index 0, got %d", indices[0])
	}
	if indices[len(indices)-1] != 99 {
		t.Fatalf("expected last index 99, got %d", indices[len(indices)-1])
	}
	if len(indices) > 8 {
		t.Fatalf("expected at most 8 indices, got %d", len(indices))
	}
}

func TestSampleIndicesReturnsEverythingWhenUnderLimit(t *testing.T) {
	indices := sampleIndices(3, 8)
	if len(indices) != 3 {
		t.Fatalf("expected all 3 indices, got %+v", indices)
	}
}

func TestWithRetryRespectsContextCancellation(t *testing.T) {
	o := &Orchestrator{cfg: Config{MaxRetries: 5, RetryBaseDelay: 50 * time.Millisecond}}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := o.withRetry(ctx, func(ctx context.Context) error {
		attempts++
		return errors.New("keep failing")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts >= 6 {
		t.Fatalf("expected cancellation to cut retries short, got %d attempts", attempts)
	}
}
