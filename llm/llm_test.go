package llm

import (
	"testing"

	"github.com/deletexiumu/screen-analyzer/config"
	"github.com/deletexiumu/screen-analyzer/models"
)

func TestFineToCoarseKnownLabel(t *testing.T) {
	coarse, kw := FineToCoarse("Coding")
	if coarse != models.CategoryWork {
		t.Fatalf("expected work, got %s", coarse)
	}
	if kw != "coding" {
		t.Fatalf("expected lowercase keyword, got %q", kw)
	}
}

func TestFineToCoarseUnknownLabelFallsBackToOther(t *testing.T) {
	coarse, kw := FineToCoarse("underwater-basket-weaving")
	if coarse != models.CategoryOther {
		t.Fatalf("expected other, got %s", coarse)
	}
	if kw != "underwater-basket-weaving" {
		t.Fatalf("expected original label kept as keyword, got %q", kw)
	}
}

func TestParseStructuredExtractsFromFencedBlock(t *testing.T) {
	raw := "Sure, here you go:\n```json\n{\"title\": \"hello\"}\n```\n"
	var out struct {
		Title string `json:"title"`
	}
	if err := ParseStructured(raw, &out); err != nil {
		t.Fatalf("ParseStructured returned error: %v", err)
	}
	if out.Title != "hello" {
		t.Fatalf("expected hello, got %q", out.Title)
	}
}

func TestParseStructuredReturnsSchemaRepairErrorOnGarbage(t *testing.T) {
	err := ParseStructured("not json at all", &struct{}{})
	if err == nil {
		t.Fatal("expected error")
	}
	var repairErr *SchemaRepairError
	if !asSchemaRepairError(err, &repairErr) {
		t.Fatalf("expected *SchemaRepairError, got %T", err)
	}
}

func asSchemaRepairError(err error, target **SchemaRepairError) bool {
	if e, ok := err.(*SchemaRepairError); ok {
		*target = e
		return true
	}
	return false
}

func TestActiveCellApplyConfigUnknownProviderKeepsPrevious(t *testing.T) {
	cell := NewActiveCell()
	if cell.Get() != nil {
		t.Fatal("expected nil active provider initially")
	}
	cell.ApplyConfig(config.ConfigValue{LLMProvider: "no-such-provider"})
	if cell.Get() != nil {
		t.Fatal("expected unknown provider to leave the previous (nil) active provider in place")
	}
}
