package db

import "database/sql"

// GetDaySummary returns the cached summary JSON for date (YYYY-MM-DD), or
// ("", false) if nothing is cached.
func GetDaySummary(date string) (string, bool, error) {
	var summaryJSON string
	err := GetDB().QueryRow(`SELECT summary_json FROM day_summaries WHERE date = ?`, date).Scan(&summaryJSON)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return summaryJSON, true, nil
}

// PutDaySummary caches a generated day summary, replacing any prior entry.
func PutDaySummary(date, summaryJSON string) error {
	_, err := GetDB().Exec(`
		INSERT INTO day_summaries (date, summary_json, generated_at_ms)
		VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET summary_json = excluded.summary_json, generated_at_ms = excluded.generated_at_ms
	`, date, summaryJSON, NowMs())
	return err
}

// InvalidateDaySummary drops the cached summary for date, called whenever a
// session on that date is re-analyzed.
func InvalidateDaySummary(date string) error {
	_, err := GetDB().Exec(`DELETE FROM day_summaries WHERE date = ?`, date)
	return err
}
