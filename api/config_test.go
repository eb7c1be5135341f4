package api

import (
	"encoding/json"
	"net/http"
	"testing"

	cfgpkg "github.com/deletexiumu/screen-analyzer/config"
)

func TestGetAppConfigReturnsDefaults(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "GET", "/api/config", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp DataResponse[cfgpkg.ConfigValue]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.RetentionDays != cfgpkg.Default().RetentionDays {
		t.Fatalf("expected default retention_days, got %d", resp.Data.RetentionDays)
	}
}

func TestUpdateConfigPersistsValidChange(t *testing.T) {
	h, r := setupTestHandlers(t)

	next := cfgpkg.Default()
	next.RetentionDays = 14
	body, err := json.Marshal(next)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	w := performRequest(r, "PUT", "/api/config", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if got := h.cfgMgr.Get().RetentionDays; got != 14 {
		t.Fatalf("expected retention_days=14 persisted, got %d", got)
	}
}

func TestUpdateConfigRejectsOutOfRangeField(t *testing.T) {
	_, r := setupTestHandlers(t)

	next := cfgpkg.Default()
	next.RetentionDays = 999
	body, err := json.Marshal(next)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	w := performRequest(r, "PUT", "/api/config", body)
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
