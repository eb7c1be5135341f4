package db

import "database/sql"

// SessionFilePaths returns the frame file paths and video path recorded for
// a session without deleting anything. The caller must unlink every path
// returned here from disk before calling DeleteSessionRows, so a crash in
// between leaves an orphan row, never a dangling file.
func SessionFilePaths(sessionID int64) (framePaths []string, videoPath *string, err error) {
	rows, err := GetDB().Query(`SELECT file_path FROM frames WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, nil, err
		}
		framePaths = append(framePaths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var vp sql.NullString
	if err := GetDB().QueryRow(`SELECT video_path FROM sessions WHERE id = ?`, sessionID).Scan(&vp); err != nil {
		return nil, nil, err
	}
	videoPath = StringPtr(vp)
	return framePaths, videoPath, nil
}

// DeleteSessionRows removes one session's frame rows, llm_calls, and the
// session row itself inside a single transaction. Call only after every
// path from SessionFilePaths has already been unlinked from disk, so the
// commit here is the point of no return: the files are already gone.
func DeleteSessionRows(sessionID int64) error {
	return Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM frames WHERE session_id = ?`, sessionID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM llm_calls WHERE session_id = ?`, sessionID); err != nil {
			return err
		}
		return DeleteSessionRow(tx, sessionID)
	})
}

// OrphanFramePaths returns the file paths of frame rows that were never
// bound to a session and are older than cutoffMs, without deleting
// anything. The caller must unlink every path before calling
// DeleteOrphanFrameRows.
func OrphanFramePaths(cutoffMs int64) ([]string, error) {
	rows, err := GetDB().Query(`SELECT file_path FROM frames WHERE session_id IS NULL AND timestamp_ms < ?`, cutoffMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// DeleteOrphanFrameRows deletes the rows behind OrphanFramePaths(cutoffMs).
// Call only after every path it returned has been unlinked from disk.
func DeleteOrphanFrameRows(cutoffMs int64) error {
	_, err := GetDB().Exec(`DELETE FROM frames WHERE session_id IS NULL AND timestamp_ms < ?`, cutoffMs)
	return err
}
