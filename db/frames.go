package db

import (
	"database/sql"
	"fmt"

	"github.com/deletexiumu/screen-analyzer/models"
)

// InsertFrame records a captured frame. Frames start unbound (session_id
// NULL); the segmenter binds them once a session boundary is decided.
// Timestamps must be strictly increasing per display: a frame at or before
// the last one recorded for the same display is rejected rather than
// silently accepted out of order.
func InsertFrame(f *models.FrameRecord) (int64, error) {
	var lastTs sql.NullInt64
	err := GetDB().QueryRow(
		`SELECT MAX(timestamp_ms) FROM frames WHERE display_index = ?`, f.DisplayIndex,
	).Scan(&lastTs)
	if err != nil {
		return 0, err
	}
	if lastTs.Valid && f.TimestampMs <= lastTs.Int64 {
		return 0, fmt.Errorf("frame timestamp %d not after last recorded timestamp %d for display %d", f.TimestampMs, lastTs.Int64, f.DisplayIndex)
	}

	isBlack := 0
	if f.IsBlack {
		isBlack = 1
	}

	res, err := GetDB().Exec(`
		INSERT INTO frames (timestamp_ms, file_path, display_index, width, height, byte_size, is_black, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, f.TimestampMs, f.FilePath, f.DisplayIndex, f.Width, f.Height, f.ByteSize, isBlack, NullInt64(f.SessionID))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListUnboundFrames returns frames not yet assigned to a session, oldest
// first. The segmenter walks this list to decide session boundaries.
func ListUnboundFrames(limit int) ([]*models.FrameRecord, error) {
	rows, err := GetDB().Query(`
		SELECT id, timestamp_ms, file_path, display_index, width, height, byte_size, is_black, session_id
		FROM frames
		WHERE session_id IS NULL
		ORDER BY timestamp_ms ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFrames(rows)
}

// ListFramesInSession returns every frame bound to a session, oldest first.
func ListFramesInSession(sessionID int64) ([]*models.FrameRecord, error) {
	rows, err := GetDB().Query(`
		SELECT id, timestamp_ms, file_path, display_index, width, height, byte_size, is_black, session_id
		FROM frames
		WHERE session_id = ?
		ORDER BY timestamp_ms ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanFrames(rows)
}

// BindFramesToSession assigns a batch of frames to a session in one
// statement, used by the segmenter when it closes a boundary.
func BindFramesToSession(frameIDs []int64, sessionID int64) error {
	if len(frameIDs) == 0 {
		return nil
	}
	return Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`UPDATE frames SET session_id = ? WHERE id = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range frameIDs {
			if _, err := stmt.Exec(sessionID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanFrames(rows *sql.Rows) ([]*models.FrameRecord, error) {
	var out []*models.FrameRecord
	for rows.Next() {
		f := &models.FrameRecord{}
		var isBlack int
		var sessionID sql.NullInt64
		if err := rows.Scan(&f.ID, &f.TimestampMs, &f.FilePath, &f.DisplayIndex, &f.Width, &f.Height, &f.ByteSize, &isBlack, &sessionID); err != nil {
			return nil, err
		}
		f.IsBlack = isBlack == 1
		f.SessionID = Int64Ptr(sessionID)
		out = append(out, f)
	}
	return out, rows.Err()
}
