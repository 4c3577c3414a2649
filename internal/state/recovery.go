package state

import (
	"fmt"
	"time"

	"github.com/ShayCichocki/jit/pkg/models"
)

// InterruptedRun describes a run that never recorded a response, usually
// because the process exited mid-request.
type InterruptedRun struct {
	RunID     string
	SessionID string
	Request   string
	StartedAt time.Time
}

// RecoveryManager detects and closes out interrupted runs on startup.
type RecoveryManager struct {
	db *DB
}

// NewRecoveryManager creates a new RecoveryManager with the given database.
func NewRecoveryManager(db *DB) *RecoveryManager {
	return &RecoveryManager{db: db}
}

// CheckForInterrupted lists runs still marked running that started before
// the given time. Runs started after it belong to the live process.
func (rm *RecoveryManager) CheckForInterrupted(before time.Time) ([]InterruptedRun, error) {
	rows, err := rm.db.Query(`
		SELECT id, session_id, request, started_at FROM runs
		WHERE status = ? AND started_at < ? ORDER BY started_at
	`, string(models.RunRunning), formatTime(before))
	if err != nil {
		return nil, fmt.Errorf("list running runs: %w", err)
	}
	defer rows.Close()

	var interrupted []InterruptedRun
	for rows.Next() {
		var r InterruptedRun
		var startedAt string
		if err := rows.Scan(&r.RunID, &r.SessionID, &r.Request, &startedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = parseTime(startedAt)
		interrupted = append(interrupted, r)
	}
	return interrupted, rows.Err()
}

// MarkInterrupted closes out runs still marked running that started before
// the given time. Returns the number of runs updated.
func (rm *RecoveryManager) MarkInterrupted(before time.Time) (int64, error) {
	result, err := rm.db.Exec(`
		UPDATE runs SET status = ?, finished_at = ? WHERE status = ? AND started_at < ?
	`, string(models.RunInterrupted), formatTime(time.Now()), string(models.RunRunning), formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}
