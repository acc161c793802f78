package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run is one row of run_history: a single process lifetime of a worker.
// EndedAt is nil while the run is still open.
type Run struct {
	RunID           string
	WorkerID        string
	PID             int
	Hostname        string
	StartedAt       time.Time
	EndedAt         *time.Time
	CyclesCompleted int
	Failures        int64
	LastError       string
	CleanShutdown   bool
}

// RecordRunStart inserts an open run row at loop startup.
func (s *Store) RecordRunStart(ctx context.Context, r Run) error {
	query := `
		INSERT INTO run_history (
			run_id, worker_id, pid, hostname, started_at
		) VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.RunID, r.WorkerID, r.PID, r.Hostname, r.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// RecordRunEnd closes the run row with final counters. A clean shutdown is
// one that reached the stopping sequence, whether triggered by signal,
// Stop, or the cycle limit.
func (s *Store) RecordRunEnd(ctx context.Context, runID string, cycles int, failures int64, lastError string, clean bool) error {
	query := `
		UPDATE run_history
		SET ended_at = ?, cycles_completed = ?, failures = ?,
		    last_error = ?, clean_shutdown = ?
		WHERE run_id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		time.Now().UTC(), cycles, failures, lastError, boolToInt(clean), runID)
	if err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// RecentRuns returns the latest runs for a worker, newest first.
// A limit of 0 or less means no limit.
func (s *Store) RecentRuns(ctx context.Context, workerID string, limit int) ([]Run, error) {
	query := `
		SELECT run_id, worker_id, pid, hostname, started_at, ended_at,
		       cycles_completed, failures, last_error, clean_shutdown
		FROM run_history
		WHERE worker_id = ?
		ORDER BY started_at DESC
	`
	args := []any{workerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// OpenRuns returns runs with no recorded end, oldest first. These are
// either live workers or crash leftovers for doctor to flag.
func (s *Store) OpenRuns(ctx context.Context) ([]Run, error) {
	query := `
		SELECT run_id, worker_id, pid, hostname, started_at, ended_at,
		       cycles_completed, failures, last_error, clean_shutdown
		FROM run_history
		WHERE ended_at IS NULL
		ORDER BY started_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// DeleteOldRuns removes finished runs older than the cutoff while always
// keeping the most recent keepCount finished runs per worker. Returns the
// number of rows deleted.
func (s *Store) DeleteOldRuns(ctx context.Context, olderThan time.Duration, keepCount int) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	query := `
		DELETE FROM run_history
		WHERE ended_at IS NOT NULL
		  AND started_at < ?
		  AND run_id NOT IN (
			SELECT run_id FROM run_history AS r2
			WHERE r2.worker_id = run_history.worker_id
			  AND r2.ended_at IS NOT NULL
			ORDER BY r2.started_at DESC
			LIMIT ?
		  )
	`

	res, err := s.db.ExecContext(ctx, query, cutoff, keepCount)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	return res.RowsAffected()
}

// CountOldRuns reports how many runs DeleteOldRuns would remove under the
// same policy. Used for dry runs.
func (s *Store) CountOldRuns(ctx context.Context, olderThan time.Duration, keepCount int) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	query := `
		SELECT COUNT(*) FROM run_history
		WHERE ended_at IS NOT NULL
		  AND started_at < ?
		  AND run_id NOT IN (
			SELECT run_id FROM run_history AS r2
			WHERE r2.worker_id = run_history.worker_id
			  AND r2.ended_at IS NOT NULL
			ORDER BY r2.started_at DESC
			LIMIT ?
		  )
	`

	var n int64
	if err := s.db.QueryRowContext(ctx, query, cutoff, keepCount).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count old runs: %w", err)
	}
	return n, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var out []Run
	for rows.Next() {
		var r Run
		var ended sql.NullTime
		var clean int
		if err := rows.Scan(
			&r.RunID,
			&r.WorkerID,
			&r.PID,
			&r.Hostname,
			&r.StartedAt,
			&ended,
			&r.CyclesCompleted,
			&r.Failures,
			&r.LastError,
			&clean,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			r.EndedAt = &t
		}
		r.CleanShutdown = clean != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
