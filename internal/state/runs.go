package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/jit/pkg/models"
)

// Run operations

// StartRun inserts a run in the running state.
func (db *DB) StartRun(r *models.RunRecord) error {
	if r.Status == "" {
		r.Status = models.RunRunning
	}
	plan, err := encodePlan(r.Graph)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		INSERT INTO runs (id, session_id, request, status, path, reasoning, plan, response, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.SessionID, r.Request, string(r.Status), string(r.Path), r.Reasoning, plan, r.Response,
		formatTime(r.StartedAt), nullableTime(r))
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run and marks it done.
func (db *DB) FinishRun(r *models.RunRecord) error {
	r.Status = models.RunDone
	plan, err := encodePlan(r.Graph)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		UPDATE runs SET status = ?, path = ?, reasoning = ?, plan = ?, response = ?, finished_at = ?
		WHERE id = ?
	`, string(r.Status), string(r.Path), r.Reasoning, plan, r.Response, nullableTime(r), r.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordRun stores a completed run in one step.
func (db *DB) RecordRun(r *models.RunRecord) error {
	r.Status = models.RunDone
	return db.StartRun(r)
}

// GetRun retrieves a run by ID. Returns nil, nil if it does not exist.
func (db *DB) GetRun(id string) (*models.RunRecord, error) {
	rows, err := db.Query(runColumns+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// RecentRuns returns up to n runs, newest first.
func (db *DB) RecentRuns(n int) ([]models.RunRecord, error) {
	rows, err := db.Query(runColumns+" ORDER BY started_at DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return scanRuns(rows)
}

// RecentRunsForSession returns up to n runs of one session, newest first.
func (db *DB) RecentRunsForSession(sessionID string, n int) ([]models.RunRecord, error) {
	rows, err := db.Query(runColumns+" WHERE session_id = ? ORDER BY started_at DESC LIMIT ?", sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return scanRuns(rows)
}

const runColumns = `
	SELECT id, session_id, request, status, path, reasoning, plan, response, started_at, finished_at
	FROM runs`

func scanRuns(rows *sql.Rows) ([]models.RunRecord, error) {
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var r models.RunRecord
		var status, startedAt string
		var path, reasoning, plan, response, finishedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Request, &status, &path, &reasoning,
			&plan, &response, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = models.RunStatus(status)
		r.Path = models.RoutePath(path.String)
		r.Reasoning = reasoning.String
		r.Response = response.String
		r.StartedAt, _ = parseTime(startedAt)
		r.FinishedAt = parseNullableTime(finishedAt)
		if plan.String != "" {
			var eg models.ExecutionGraph
			if err := json.Unmarshal([]byte(plan.String), &eg); err != nil {
				return nil, fmt.Errorf("decode plan for run %s: %w", r.ID, err)
			}
			r.Graph = &eg
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func encodePlan(eg *models.ExecutionGraph) (string, error) {
	if eg == nil {
		return "", nil
	}
	data, err := json.Marshal(eg)
	if err != nil {
		return "", fmt.Errorf("encode plan: %w", err)
	}
	return string(data), nil
}

func nullableTime(r *models.RunRecord) any {
	if r.FinishedAt.IsZero() {
		return nil
	}
	return formatTime(r.FinishedAt)
}
