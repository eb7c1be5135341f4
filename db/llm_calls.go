package db

import (
	"database/sql"

	"github.com/deletexiumu/screen-analyzer/models"
)

// InsertLLMCall writes an audit record for one provider invocation. This is
// the only place a prompt/response digest is persisted; raw payloads never
// are.
func InsertLLMCall(c *models.LLMCall) error {
	_, err := GetDB().Exec(`
		INSERT INTO llm_calls (id, session_id, provider, model, latency_ms, input_token_count,
		                        output_token_count, request_digest, response_digest, error, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, NullInt64(c.SessionID), c.Provider, c.Model, c.LatencyMs, c.InputTokenCount,
		c.OutputTokenCount, c.RequestDigest, c.ResponseDigest, c.Error, c.CreatedAtMs)
	return err
}

// ListLLMCallsForSession returns the audit trail for one session, newest
// first.
func ListLLMCallsForSession(sessionID int64) ([]*models.LLMCall, error) {
	rows, err := GetDB().Query(`
		SELECT id, session_id, provider, model, latency_ms, input_token_count, output_token_count,
		       request_digest, response_digest, error, created_at_ms
		FROM llm_calls
		WHERE session_id = ?
		ORDER BY created_at_ms DESC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.LLMCall
	for rows.Next() {
		c := &models.LLMCall{}
		var sessionID sql.NullInt64
		if err := rows.Scan(&c.ID, &sessionID, &c.Provider, &c.Model, &c.LatencyMs, &c.InputTokenCount,
			&c.OutputTokenCount, &c.RequestDigest, &c.ResponseDigest, &c.Error, &c.CreatedAtMs); err != nil {
			return nil, err
		}
		c.SessionID = Int64Ptr(sessionID)
		out = append(out, c)
	}
	return out, rows.Err()
}
