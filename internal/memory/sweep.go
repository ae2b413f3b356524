package memory

import (
	"fmt"
	"time"
)

// SweepResult counts what a retention sweep removed.
type SweepResult struct {
	Sessions int64 `json:"sessions"`
	Analyses int64 `json:"analyses"`
}

// Sweep deletes sessions and analyses created before cutoff. Trace steps
// and candidates go with their parents.
func (s *SQLiteStore) Sweep(cutoff time.Time) (SweepResult, error) {
	var out SweepResult
	ts := formatTime(cutoff)

	tx, err := s.db.Begin()
	if err != nil {
		return out, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM analyses WHERE created_at < ?`, ts)
	if err != nil {
		return out, fmt.Errorf("sweep analyses: %w", err)
	}
	out.Analyses, _ = res.RowsAffected()

	res, err = tx.Exec(`DELETE FROM sessions WHERE created_at < ?`, ts)
	if err != nil {
		return out, fmt.Errorf("sweep sessions: %w", err)
	}
	out.Sessions, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return out, fmt.Errorf("commit sweep: %w", err)
	}
	return out, nil
}
