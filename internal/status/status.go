// Package status persists worker progress to the filesystem and reads it
// back. A worker's latest snapshot lands in two sibling files, a
// human-readable {id}.stats and a structured {id}.json, plus a {id}.pid
// marker tied to the owning process. External tools only ever read these
// files; they never talk to the worker process.
package status

import (
	"context"
	"time"

	"github.com/drudgelabs/drudge/internal/stats"
)

// Status is the structured rendering of one stats snapshot, the schema of
// the {id}.json artifact.
type Status struct {
	WorkerID        string                     `json:"workerId"`
	RunID           string                     `json:"runId"`
	PID             int                        `json:"pid"`
	State           string                     `json:"state"`
	StartedAt       time.Time                  `json:"startedAt"`
	LastCycleAt     *time.Time                 `json:"lastCycleAt,omitempty"`
	UpdatedAt       time.Time                  `json:"updatedAt"`
	CyclesCompleted int                        `json:"cyclesCompleted"`
	LastError       string                     `json:"lastError,omitempty"`
	Operations      map[string]OperationStatus `json:"operations"`
}

// OperationStatus is the per-operation block inside Status. Durations are
// seconds so the file is directly consumable without Go duration parsing.
type OperationStatus struct {
	Count              int64     `json:"count"`
	Failures           int64     `json:"failures"`
	AvgDurationSeconds float64   `json:"avgDurationSeconds"`
	RateOpsPerSec      float64   `json:"rateOpsPerSec"`
	MinDurationSeconds float64   `json:"minDurationSeconds"`
	MaxDurationSeconds float64   `json:"maxDurationSeconds"`
	LastRunAt          time.Time `json:"lastRunAt"`
}

// Sink receives status reports. The file writer is the canonical sink; the
// SQLite and HTTP sinks are optional extras. A sink failure must never stop
// the worker loop, so implementations return errors for the caller to log
// and move past.
type Sink interface {
	Report(ctx context.Context, st Status) error
}

// FromSnapshot builds a Status from a tracker snapshot plus the identity of
// the run that produced it.
func FromSnapshot(workerID, runID string, pid int, state string, snap stats.Snapshot) Status {
	st := Status{
		WorkerID:        workerID,
		RunID:           runID,
		PID:             pid,
		State:           state,
		StartedAt:       snap.StartedAt,
		UpdatedAt:       snap.TakenAt,
		CyclesCompleted: snap.CyclesCompleted,
		LastError:       snap.LastError,
		Operations:      make(map[string]OperationStatus, len(snap.Operations)),
	}

	if !snap.LastCycleAt.IsZero() {
		last := snap.LastCycleAt
		st.LastCycleAt = &last
	}

	for name, op := range snap.Operations {
		st.Operations[name] = OperationStatus{
			Count:              op.Count,
			Failures:           op.Failures,
			AvgDurationSeconds: op.Avg().Seconds(),
			RateOpsPerSec:      snap.Rate(name),
			MinDurationSeconds: op.Min.Seconds(),
			MaxDurationSeconds: op.Max.Seconds(),
			LastRunAt:          op.LastRun,
		}
	}

	return st
}

// Uptime returns how long the run had been alive when the status was
// written.
func (s Status) Uptime() time.Duration {
	return s.UpdatedAt.Sub(s.StartedAt)
}
