package db

import "database/sql"

func init() {
	RegisterMigration(Migration{
		Version:     2,
		Description: "enforce per-display frame timestamp monotonicity",
		Up:          migration002_frameTimestampUnique,
	})
}

func migration002_frameTimestampUnique(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE UNIQUE INDEX idx_frames_display_timestamp ON frames(display_index, timestamp_ms);
	`)
	return err
}
