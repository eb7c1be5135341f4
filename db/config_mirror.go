package db

import "database/sql"

// MirrorConfig writes the current config.json contents into the config
// table's single 'current' row. This is an audit mirror only — config.json
// on disk remains the authoritative copy consulted at startup.
func MirrorConfig(valueJSON string) error {
	_, err := GetDB().Exec(`
		INSERT INTO config (key, value, updated_at_ms)
		VALUES ('current', ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at_ms = excluded.updated_at_ms
	`, valueJSON, NowMs())
	return err
}

// GetConfigMirror returns the last mirrored config.json snapshot, or "" if
// none has been written yet.
func GetConfigMirror() (string, error) {
	var value string
	err := GetDB().QueryRow(`SELECT value FROM config WHERE key = 'current'`).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}
