package db

import "github.com/deletexiumu/screen-analyzer/models"

// QueryStorageCounts returns the row counts behind get_storage_stats. Byte
// totals for the DB file and the frames/videos directories are filesystem
// facts the caller (retention.Stats) fills in separately.
func QueryStorageCounts() (sessionCount, frameCount int, framesByDevice map[models.DeviceType]int, err error) {
	if err = GetDB().QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&sessionCount); err != nil {
		return
	}
	if err = GetDB().QueryRow(`SELECT COUNT(*) FROM frames`).Scan(&frameCount); err != nil {
		return
	}

	rows, qerr := GetDB().Query(`
		SELECT COALESCE(s.device_type, 'unknown'), COUNT(f.id)
		FROM frames f
		LEFT JOIN sessions s ON s.id = f.session_id
		GROUP BY COALESCE(s.device_type, 'unknown')
	`)
	if qerr != nil {
		err = qerr
		return
	}
	defer rows.Close()

	framesByDevice = make(map[models.DeviceType]int)
	for rows.Next() {
		var dt string
		var count int
		if err = rows.Scan(&dt, &count); err != nil {
			return
		}
		framesByDevice[models.DeviceType(dt)] = count
	}
	err = rows.Err()
	return
}

// QueryDayActivityRollup aggregates every session intersecting
// [dayStartMs, dayEndMs), whatever its analysis state, into a session count,
// total minutes, and a per-category tag mix, for the calendar view.
func QueryDayActivityRollup(dayStartMs, dayEndMs int64) (*models.DayActivity, error) {
	sessions, err := QueryDaySessions(dayStartMs, dayEndMs)
	if err != nil {
		return nil, err
	}

	out := &models.DayActivity{
		TagMix: make(map[models.ActivityCategory]int),
	}
	for _, s := range sessions {
		out.SessionCount++
		out.TotalMinutes += float64(s.EndTimeMs-s.StartTimeMs) / 60000.0
		for _, t := range s.Tags {
			out.TagMix[t.Category]++
		}
	}
	return out, nil
}
