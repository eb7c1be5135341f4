package db

import "database/sql"

// AcquireLease claims an exclusive (sessionID, kind) lease — e.g.
// ("analysis") or ("video") — reclaiming it if the previous holder's lease
// has already expired. It returns false without error if the lease is held
// by someone else and still live; the caller should skip this unit of work
// rather than retry immediately.
func AcquireLease(sessionID int64, kind, holder string, ttlMs int64) (bool, error) {
	now := NowMs()
	expires := now + ttlMs

	acquired := false
	err := Transaction(func(tx *sql.Tx) error {
		var existingExpires int64
		err := tx.QueryRow(`SELECT expires_at_ms FROM leases WHERE session_id = ? AND kind = ?`, sessionID, kind).Scan(&existingExpires)

		switch {
		case err == sql.ErrNoRows:
			_, err = tx.Exec(`INSERT INTO leases (session_id, kind, holder, acquired_at_ms, expires_at_ms) VALUES (?, ?, ?, ?, ?)`,
				sessionID, kind, holder, now, expires)
			if err != nil {
				return err
			}
			acquired = true
			return nil
		case err != nil:
			return err
		case existingExpires < now:
			_, err = tx.Exec(`UPDATE leases SET holder = ?, acquired_at_ms = ?, expires_at_ms = ? WHERE session_id = ? AND kind = ?`,
				holder, now, expires, sessionID, kind)
			if err != nil {
				return err
			}
			acquired = true
			return nil
		default:
			return nil
		}
	})
	return acquired, err
}

// ReleaseLease drops a lease early, e.g. once analysis for a session
// completes well before its TTL.
func ReleaseLease(sessionID int64, kind, holder string) error {
	_, err := GetDB().Exec(`DELETE FROM leases WHERE session_id = ? AND kind = ? AND holder = ?`, sessionID, kind, holder)
	return err
}
