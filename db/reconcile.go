package db

import (
	"database/sql"
	"os"
	"path/filepath"
)

// reconcileMissingFiles drops frame rows whose backing JPEG is gone — e.g.
// the process was killed mid-write, or the frames directory was pruned by
// hand. Runs once at startup, after migrations, before the caller proceeds.
func reconcileMissingFiles(db *sql.DB, framesDir string) error {
	rows, err := db.Query(`SELECT id, file_path FROM frames`)
	if err != nil {
		return err
	}

	type missing struct {
		id   int64
		path string
	}
	var toDrop []missing

	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			return err
		}
		full := path
		if !filepath.IsAbs(full) {
			full = filepath.Join(framesDir, path)
		}
		if _, statErr := os.Stat(full); os.IsNotExist(statErr) {
			toDrop = append(toDrop, missing{id, path})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	if len(toDrop) == 0 {
		return nil
	}

	logger.Warn().Int("count", len(toDrop)).Msg("dropping frame rows with missing files")

	stmt, err := db.Prepare(`DELETE FROM frames WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range toDrop {
		if _, err := stmt.Exec(m.id); err != nil {
			return err
		}
	}
	return nil
}
