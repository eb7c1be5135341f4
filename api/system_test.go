package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestGetSystemStatusReportsCaptureState(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "GET", "/api/system/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp DataResponse[systemStatus]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.CaptureState == "" {
		t.Fatalf("expected a non-empty capture state")
	}
}

func TestToggleCaptureFlipsState(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "POST", "/api/capture/toggle", []byte(`{"enabled":false}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp DataResponse[systemStatus]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.CaptureState != "paused" {
		t.Fatalf("expected paused state, got %q", resp.Data.CaptureState)
	}
}

func TestGetStorageStatsReturnsCounts(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "GET", "/api/storage/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCleanupStorageRuns(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "POST", "/api/storage/cleanup", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTestLLMAPIRejectsUnknownProvider(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "POST", "/api/llm/test", []byte(`{"provider":"nonexistent"}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error.Kind != "ConfigInvalid" {
		t.Fatalf("expected ConfigInvalid kind, got %q", resp.Error.Kind)
	}
}

func TestTestLLMAPIRequiresProviderField(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "POST", "/api/llm/test", []byte(`{}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}
