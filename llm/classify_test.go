package llm

import (
	"errors"
	"testing"

	"github.com/deletexiumu/screen-analyzer/errs"
)

func TestTransientClassifiesRateLimitAndUnavailableAsRetryable(t *testing.T) {
	if !transient(errs.New(errs.LLMRateLimited, "429")) {
		t.Fatal("expected rate limit to be transient")
	}
	if !transient(errs.New(errs.LLMUnavailable, "503")) {
		t.Fatal("expected unavailable to be transient")
	}
}

func TestTransientClassifiesAuthAndBadSchemaAsNonRetryable(t *testing.T) {
	if transient(errs.New(errs.LLMAuth, "401")) {
		t.Fatal("expected auth failure to be non-transient")
	}
	if transient(errs.New(errs.LLMBadSchema, "400")) {
		t.Fatal("expected bad schema to be non-transient")
	}
}

func TestTransientClassifiesSchemaRepairErrorAsNonRetryable(t *testing.T) {
	err := &SchemaRepairError{RawText: "garbage", Cause: errors.New("invalid json")}
	if transient(err) {
		t.Fatal("expected schema repair error to be non-transient")
	}
}

func TestTransientDefaultsUnknownErrorsToRetryable(t *testing.T) {
	if !transient(errors.New("connection reset")) {
		t.Fatal("expected an unclassified error to default to transient")
	}
}
