package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/deletexiumu/screen-analyzer/models"
)

func TestGetSessionDetailNotFound(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "GET", "/api/sessions/999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error.Kind != "NotFound" {
		t.Fatalf("expected NotFound kind, got %q", resp.Error.Kind)
	}
}

func TestGetSessionDetailFound(t *testing.T) {
	_, r := setupTestHandlers(t)
	id := insertTestSession(t, 0, 60_000, models.AnalysisClosed)

	w := performRequest(r, "GET", sessionPath(id), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp DataResponse[models.Session]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.ID != id {
		t.Fatalf("expected session id %d, got %d", id, resp.Data.ID)
	}
}

func TestDeleteSessionRemovesRow(t *testing.T) {
	_, r := setupTestHandlers(t)
	id := insertTestSession(t, 0, 60_000, models.AnalysisClosed)

	w := performRequest(r, "DELETE", sessionPath(id), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	w = performRequest(r, "GET", sessionPath(id), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected session gone after delete, got %d", w.Code)
	}
}

func TestDeleteSessionUnknownIDNotFound(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "DELETE", "/api/sessions/42", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRetrySessionAnalysisQueuesRegardlessOfState(t *testing.T) {
	_, r := setupTestHandlers(t)
	id := insertTestSession(t, 0, 60_000, models.AnalysisTooShort)

	w := performRequest(r, "POST", sessionPath(id)+"/retry", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTriggerAnalysisReturnsQueuedCount(t *testing.T) {
	_, r := setupTestHandlers(t)
	insertTestSession(t, 0, 60_000, models.AnalysisClosed)
	insertTestSession(t, 120_000, 180_000, models.AnalysisClosed)
	insertTestSession(t, 240_000, 300_000, models.AnalysisOpen) // not closed, shouldn't count

	w := performRequest(r, "POST", "/api/analysis/trigger", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp DataResponse[struct {
		Queued int `json:"queued"`
	}]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.Queued != 2 {
		t.Fatalf("expected 2 queued, got %d", resp.Data.Queued)
	}
}

func TestGenerateVideoRejectsOutOfRangeSpeed(t *testing.T) {
	_, r := setupTestHandlers(t)
	id := insertTestSession(t, 0, 60_000, models.AnalysisAnalyzed)

	w := performRequest(r, "POST", sessionPath(id)+"/video", []byte(`{"speed_multiplier":999}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGenerateVideoAcceptsNoBody(t *testing.T) {
	_, r := setupTestHandlers(t)
	id := insertTestSession(t, 0, 60_000, models.AnalysisAnalyzed)

	w := performRequest(r, "POST", sessionPath(id)+"/video", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAddManualTagStampsManualSource(t *testing.T) {
	_, r := setupTestHandlers(t)
	id := insertTestSession(t, 0, 60_000, models.AnalysisAnalyzed)

	body := []byte(`{"category":"work","keywords":["writing"]}`)
	w := performRequest(r, "POST", sessionPath(id)+"/tags", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp DataResponse[models.Session]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Data.Tags) != 1 {
		t.Fatalf("expected 1 tag, got %d", len(resp.Data.Tags))
	}
	if resp.Data.Tags[0].Source != models.TagSourceManual {
		t.Fatalf("expected manual source, got %q", resp.Data.Tags[0].Source)
	}
}

func TestAddManualTagMissingCategoryIsBadRequest(t *testing.T) {
	_, r := setupTestHandlers(t)
	id := insertTestSession(t, 0, 60_000, models.AnalysisAnalyzed)

	w := performRequest(r, "POST", sessionPath(id)+"/tags", []byte(`{}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}
