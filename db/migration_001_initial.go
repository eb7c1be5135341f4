package db

import "database/sql"

func init() {
	RegisterMigration(Migration{
		Version:     1,
		Description: "create frames, sessions, llm_calls, and leases tables",
		Up:          migration001_initial,
	})
}

func migration001_initial(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		CREATE TABLE frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp_ms INTEGER NOT NULL,
			file_path TEXT NOT NULL,
			display_index INTEGER NOT NULL DEFAULT 0,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			byte_size INTEGER NOT NULL,
			is_black INTEGER NOT NULL DEFAULT 0,
			session_id INTEGER REFERENCES sessions(id)
		);

		CREATE INDEX idx_frames_timestamp_ms ON frames(timestamp_ms);
		CREATE INDEX idx_frames_session_id ON frames(session_id);
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TABLE sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			start_time_ms INTEGER NOT NULL,
			end_time_ms INTEGER NOT NULL,
			device_name TEXT NOT NULL DEFAULT '',
			device_type TEXT NOT NULL DEFAULT 'unknown',
			title TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			detailed_summary TEXT NOT NULL DEFAULT '',
			tags_json TEXT NOT NULL DEFAULT '[]',
			timeline_cards_json TEXT NOT NULL DEFAULT '[]',
			video_path TEXT,
			analysis_state TEXT NOT NULL DEFAULT 'open',
			frame_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);

		CREATE INDEX idx_sessions_start_time_ms ON sessions(start_time_ms);
		CREATE INDEX idx_sessions_analysis_state ON sessions(analysis_state);
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TABLE llm_calls (
			id TEXT PRIMARY KEY,
			session_id INTEGER REFERENCES sessions(id),
			provider TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			latency_ms INTEGER NOT NULL DEFAULT 0,
			input_token_count INTEGER NOT NULL DEFAULT 0,
			output_token_count INTEGER NOT NULL DEFAULT 0,
			request_digest TEXT NOT NULL DEFAULT '',
			response_digest TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);

		CREATE INDEX idx_llm_calls_session_id ON llm_calls(session_id);
		CREATE INDEX idx_llm_calls_created_at_ms ON llm_calls(created_at_ms);
	`)
	if err != nil {
		return err
	}

	// Leases guard exclusive per-session work (analysis, video encoding) so
	// the on-demand queue and the periodic scheduler never race the same
	// session. A lease is a row, not a lock: expired rows are reclaimable.
	_, err = tx.Exec(`
		CREATE TABLE leases (
			session_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			holder TEXT NOT NULL,
			acquired_at_ms INTEGER NOT NULL,
			expires_at_ms INTEGER NOT NULL,
			PRIMARY KEY (session_id, kind)
		)
	`)
	if err != nil {
		return err
	}

	// config is an audit mirror of config.json, not the authoritative copy —
	// config.json on disk is authoritative. Holds a single row, key='current'.
	_, err = tx.Exec(`
		CREATE TABLE config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at_ms INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// day_summaries caches generate_day_summary results, keyed by calendar
	// date (YYYY-MM-DD, a UTC day as parsed by the command surface). Invalidated
	// whenever a session on that date is re-analyzed.
	_, err = tx.Exec(`
		CREATE TABLE day_summaries (
			date TEXT PRIMARY KEY,
			summary_json TEXT NOT NULL,
			generated_at_ms INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	return tx.Commit()
}
