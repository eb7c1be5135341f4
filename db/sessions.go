package db

import (
	"database/sql"
	"encoding/json"

	"github.com/deletexiumu/screen-analyzer/models"
)

// OpenSession starts a new session row anchored at the first frame's
// timestamp. The segmenter calls this whenever a frame arrives with no
// open session to extend.
func OpenSession(startMs int64, deviceName string, deviceType models.DeviceType) (int64, error) {
	now := NowMs()
	res, err := GetDB().Exec(`
		INSERT INTO sessions (start_time_ms, end_time_ms, device_name, device_type, analysis_state, created_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, startMs, startMs, deviceName, string(deviceType), string(models.AnalysisOpen), now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ExtendSession advances a still-open session's end time and frame count as
// new frames are bound to it.
func ExtendSession(sessionID, endMs int64, frameCount int) error {
	_, err := GetDB().Exec(`
		UPDATE sessions SET end_time_ms = ?, frame_count = ?, updated_at_ms = ?
		WHERE id = ?
	`, endMs, frameCount, NowMs(), sessionID)
	return err
}

// CloseSession transitions an open session to closed (or too_short),
// marking it ready for analysis.
func CloseSession(sessionID int64, state models.AnalysisState) error {
	_, err := GetDB().Exec(`
		UPDATE sessions SET analysis_state = ?, updated_at_ms = ?
		WHERE id = ?
	`, string(state), NowMs(), sessionID)
	return err
}

// UpdateSessionAnalysis writes the orchestrator's result (or failure) back
// onto the session row and advances the analysis state machine.
func UpdateSessionAnalysis(sessionID int64, summary models.SessionSummary, state models.AnalysisState, lastError string) error {
	tagsJSON, err := json.Marshal(summary.Tags)
	if err != nil {
		return err
	}

	_, err = GetDB().Exec(`
		UPDATE sessions
		SET title = ?, summary = ?, detailed_summary = ?, tags_json = ?,
		    analysis_state = ?, last_error = ?, updated_at_ms = ?
		WHERE id = ?
	`, summary.Title, summary.Summary, summary.DetailedSummary, string(tagsJSON), string(state), lastError, NowMs(), sessionID)
	return err
}

// SetTimelineCards persists the provider's chaptering of a session.
func SetTimelineCards(sessionID int64, cards []models.TimelineCard) error {
	data, err := json.Marshal(cards)
	if err != nil {
		return err
	}
	_, err = GetDB().Exec(`UPDATE sessions SET timeline_cards_json = ?, updated_at_ms = ? WHERE id = ?`, string(data), NowMs(), sessionID)
	return err
}

// SetVideoPath records the synthesized preview clip's path, relative to the
// videos root.
func SetVideoPath(sessionID int64, videoPath string) error {
	_, err := GetDB().Exec(`UPDATE sessions SET video_path = ?, updated_at_ms = ? WHERE id = ?`, videoPath, NowMs(), sessionID)
	return err
}

// AddManualTag appends a user-supplied tag to a session, marked with
// TagSourceManual so it round-trips distinctly from provider output.
func AddManualTag(sessionID int64, tag models.ActivityTag) error {
	tag.Source = models.TagSourceManual

	return Transaction(func(tx *sql.Tx) error {
		var tagsJSON string
		if err := tx.QueryRow(`SELECT tags_json FROM sessions WHERE id = ?`, sessionID).Scan(&tagsJSON); err != nil {
			return err
		}

		var tags []models.ActivityTag
		if tagsJSON != "" {
			if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
				return err
			}
		}
		tags = append(tags, tag)

		data, err := json.Marshal(tags)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE sessions SET tags_json = ?, updated_at_ms = ? WHERE id = ?`, string(data), NowMs(), sessionID)
		return err
	})
}

// GetSession fetches one session by id, or nil if absent.
func GetSession(sessionID int64) (*models.Session, error) {
	row := GetDB().QueryRow(`
		SELECT id, start_time_ms, end_time_ms, device_name, device_type, title, summary,
		       detailed_summary, tags_json, timeline_cards_json, video_path, analysis_state,
		       frame_count, last_error
		FROM sessions WHERE id = ?
	`, sessionID)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// ListOpenSession returns the single currently-open session for a device, if
// any. There is at most one: the segmenter enforces this.
func ListOpenSession(deviceName string) (*models.Session, error) {
	row := GetDB().QueryRow(`
		SELECT id, start_time_ms, end_time_ms, device_name, device_type, title, summary,
		       detailed_summary, tags_json, timeline_cards_json, video_path, analysis_state,
		       frame_count, last_error
		FROM sessions
		WHERE device_name = ? AND analysis_state = ?
		ORDER BY start_time_ms DESC
		LIMIT 1
	`, deviceName, string(models.AnalysisOpen))
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// ListSessionsByState returns sessions in a given analysis state, oldest
// first, capped at limit. The scheduler's analysis and video-synthesis
// ticks both poll by state this way.
func ListSessionsByState(state models.AnalysisState, limit int) ([]*models.Session, error) {
	rows, err := GetDB().Query(`
		SELECT id, start_time_ms, end_time_ms, device_name, device_type, title, summary,
		       detailed_summary, tags_json, timeline_cards_json, video_path, analysis_state,
		       frame_count, last_error
		FROM sessions
		WHERE analysis_state = ?
		ORDER BY start_time_ms ASC
		LIMIT ?
	`, string(state), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// QueryDaySessions returns every session whose window intersects
// [dayStartMs, dayEndMs), for the timeline/calendar view.
func QueryDaySessions(dayStartMs, dayEndMs int64) ([]*models.Session, error) {
	rows, err := GetDB().Query(`
		SELECT id, start_time_ms, end_time_ms, device_name, device_type, title, summary,
		       detailed_summary, tags_json, timeline_cards_json, video_path, analysis_state,
		       frame_count, last_error
		FROM sessions
		WHERE start_time_ms < ? AND end_time_ms >= ?
		ORDER BY start_time_ms ASC
	`, dayEndMs, dayStartMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// QueryActivities returns the sessions intersecting [startMs, endMs), of any
// analysis state, keeping only those with at least one tag of the given
// coarse category; an empty category keeps them all.
func QueryActivities(startMs, endMs int64, category models.ActivityCategory) ([]*models.Session, error) {
	all, err := QueryDaySessions(startMs, endMs)
	if err != nil {
		return nil, err
	}
	if category == "" {
		return all, nil
	}

	var out []*models.Session
	for _, s := range all {
		for _, t := range s.Tags {
			if t.Category == category {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

// DeleteSessionRow removes a session row, used by retention after its
// frames and video have already been unlinked.
func DeleteSessionRow(tx *sql.Tx, sessionID int64) error {
	_, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}

// ListSessionsOlderThan returns session ids with end_time_ms before cutoffMs,
// the candidate set for a retention sweep.
func ListSessionsOlderThan(cutoffMs int64) ([]int64, error) {
	rows, err := GetDB().Query(`SELECT id FROM sessions WHERE end_time_ms < ?`, cutoffMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scannable) (*models.Session, error) {
	s := &models.Session{}
	var tagsJSON, cardsJSON string
	var videoPath sql.NullString

	err := row.Scan(
		&s.ID, &s.StartTimeMs, &s.EndTimeMs, &s.DeviceName, &s.DeviceType, &s.Title, &s.Summary,
		&s.DetailedSummary, &tagsJSON, &cardsJSON, &videoPath, &s.AnalysisState,
		&s.FrameCount, &s.LastError,
	)
	if err != nil {
		return nil, err
	}

	s.VideoPath = StringPtr(videoPath)
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &s.Tags); err != nil {
			return nil, err
		}
	}
	if cardsJSON != "" {
		if err := json.Unmarshal([]byte(cardsJSON), &s.TimelineCards); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func scanSessions(rows *sql.Rows) ([]*models.Session, error) {
	var out []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
