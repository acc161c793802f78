package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/drudgelabs/drudge/internal/status"
)

// Report upserts the worker's current status row. Store satisfies
// status.Sink so the loop can fan out to it alongside the file writer.
func (s *Store) Report(ctx context.Context, st status.Status) error {
	ops, err := json.Marshal(st.Operations)
	if err != nil {
		return fmt.Errorf("failed to marshal operations: %w", err)
	}

	query := `
		INSERT INTO worker_status (
			worker_id, run_id, pid, state, started_at, last_cycle_at,
			updated_at, cycles_completed, last_error, operations
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(worker_id) DO UPDATE SET
			run_id = excluded.run_id,
			pid = excluded.pid,
			state = excluded.state,
			started_at = excluded.started_at,
			last_cycle_at = excluded.last_cycle_at,
			updated_at = excluded.updated_at,
			cycles_completed = excluded.cycles_completed,
			last_error = excluded.last_error,
			operations = excluded.operations
	`

	_, err = s.db.ExecContext(ctx, query,
		st.WorkerID,
		st.RunID,
		st.PID,
		st.State,
		st.StartedAt,
		sqlNullTimePtr(st.LastCycleAt),
		st.UpdatedAt,
		st.CyclesCompleted,
		st.LastError,
		string(ops),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert worker status: %w", err)
	}
	return nil
}

// GetStatus returns the mirrored status row for a worker, or
// sql.ErrNoRows if the worker has never reported.
func (s *Store) GetStatus(ctx context.Context, workerID string) (status.Status, error) {
	query := `
		SELECT worker_id, run_id, pid, state, started_at, last_cycle_at,
		       updated_at, cycles_completed, last_error, operations
		FROM worker_status
		WHERE worker_id = ?
	`

	var st status.Status
	var lastCycle sql.NullTime
	var ops string

	err := s.db.QueryRowContext(ctx, query, workerID).Scan(
		&st.WorkerID,
		&st.RunID,
		&st.PID,
		&st.State,
		&st.StartedAt,
		&lastCycle,
		&st.UpdatedAt,
		&st.CyclesCompleted,
		&st.LastError,
		&ops,
	)
	if err != nil {
		return status.Status{}, err
	}

	if lastCycle.Valid {
		t := lastCycle.Time
		st.LastCycleAt = &t
	}
	if err := json.Unmarshal([]byte(ops), &st.Operations); err != nil {
		return status.Status{}, fmt.Errorf("failed to unmarshal operations: %w", err)
	}
	return st, nil
}

// ListStatuses returns every mirrored status row, most recently updated first.
func (s *Store) ListStatuses(ctx context.Context) ([]status.Status, error) {
	query := `
		SELECT worker_id, run_id, pid, state, started_at, last_cycle_at,
		       updated_at, cycles_completed, last_error, operations
		FROM worker_status
		ORDER BY updated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query worker statuses: %w", err)
	}
	defer rows.Close()

	var out []status.Status
	for rows.Next() {
		var st status.Status
		var lastCycle sql.NullTime
		var ops string
		if err := rows.Scan(
			&st.WorkerID,
			&st.RunID,
			&st.PID,
			&st.State,
			&st.StartedAt,
			&lastCycle,
			&st.UpdatedAt,
			&st.CyclesCompleted,
			&st.LastError,
			&ops,
		); err != nil {
			return nil, fmt.Errorf("failed to scan worker status: %w", err)
		}
		if lastCycle.Valid {
			t := lastCycle.Time
			st.LastCycleAt = &t
		}
		if err := json.Unmarshal([]byte(ops), &st.Operations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal operations: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func sqlNullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
