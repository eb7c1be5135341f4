package db

// ListFramePathsPage returns a page of frame file paths, for retention's
// orphan-file scan to build a known-paths set without loading every frame
// row into memory at once.
func ListFramePathsPage(offset, limit int64) ([]string, error) {
	rows, err := GetDB().Query(`SELECT file_path FROM frames ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListVideoPaths returns every session's video_path, skipping sessions with
// none set.
func ListVideoPaths() ([]string, error) {
	rows, err := GetDB().Query(`SELECT video_path FROM sessions WHERE video_path IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
