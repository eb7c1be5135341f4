package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/deletexiumu/screen-analyzer/models"
)

func TestGetActivitiesRequiresStart(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "GET", "/api/activities", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetActivitiesRollsUpSessionsPerDay(t *testing.T) {
	_, r := setupTestHandlers(t)

	// 2026-01-02 00:00:00 UTC in milliseconds.
	dayStart := int64(1767312000000)
	insertTestSession(t, dayStart+1000, dayStart+61_000, models.AnalysisAnalyzed)

	w := performRequest(r, "GET", "/api/activities?start=2026-01-02&end=2026-01-02", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ListResponse[models.DayActivity]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected 1 day in range, got %d", len(resp.Data))
	}
	if resp.Data[0].Date != "2026-01-02" {
		t.Fatalf("expected date 2026-01-02, got %q", resp.Data[0].Date)
	}
	if resp.Data[0].SessionCount != 1 {
		t.Fatalf("expected 1 session, got %d", resp.Data[0].SessionCount)
	}
}

func TestGetActivitiesRejectsEndBeforeStart(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "GET", "/api/activities?start=2026-01-05&end=2026-01-01", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetDaySessionsRejectsBadDate(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "GET", "/api/days/not-a-date/sessions", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetDaySessionsReturnsEmptyListNotNull(t *testing.T) {
	_, r := setupTestHandlers(t)

	w := performRequest(r, "GET", "/api/days/2026-01-01/sessions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() == "" || string(w.Body.Bytes()) == "{\"data\":null}" {
		t.Fatalf("expected empty array, not null, got %s", w.Body.String())
	}

	var resp ListResponse[models.Session]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data == nil {
		t.Fatalf("expected non-nil empty slice")
	}
}
