// Package stats accumulates per-operation timing statistics for a single
// worker run and produces immutable point-in-time snapshots of them.
package stats

import (
	"sync"
	"time"
)

// rateEpsilon is the minimum elapsed time (in seconds) used when computing
// operation rates, so a snapshot taken immediately after startup does not
// divide by zero.
const rateEpsilon = 1e-9

// OperationStat is the aggregate for one named operation. Count includes
// both successful and failed calls; Failures counts the failed subset.
type OperationStat struct {
	Count    int64
	Failures int64
	Total    time.Duration
	Min      time.Duration
	Max      time.Duration
	LastRun  time.Time
}

// Avg returns the mean duration across all recorded calls, or zero when
// nothing has been recorded.
func (o OperationStat) Avg() time.Duration {
	if o.Count == 0 {
		return 0
	}
	return o.Total / time.Duration(o.Count)
}

// Snapshot is an immutable copy of the tracker state at one instant.
// The Operations map is deep-copied; callers may retain and read a
// Snapshot freely without synchronization.
type Snapshot struct {
	Operations      map[string]OperationStat
	CyclesCompleted int
	StartedAt       time.Time
	LastCycleAt     time.Time
	LastError       string
	TakenAt         time.Time
}

// Elapsed returns the time between loop start and the moment the snapshot
// was taken.
func (s Snapshot) Elapsed() time.Duration {
	return s.TakenAt.Sub(s.StartedAt)
}

// Rate returns operations per second for the named operation, measured
// against the time elapsed since loop start. Unknown names return 0.
func (s Snapshot) Rate(name string) float64 {
	op, ok := s.Operations[name]
	if !ok {
		return 0
	}
	elapsed := s.Elapsed().Seconds()
	if elapsed < rateEpsilon {
		elapsed = rateEpsilon
	}
	return float64(op.Count) / elapsed
}

// Tracker collects operation samples and loop-level counters. All methods
// are safe for concurrent use: scopes may be created from goroutines spawned
// inside a work cycle, so a single mutex guards the whole structure.
type Tracker struct {
	mu          sync.Mutex
	startedAt   time.Time
	ops         map[string]*OperationStat
	cycles      int
	lastCycleAt time.Time
	lastError   string
}

// NewTracker creates a tracker whose loop start time is now.
func NewTracker() *Tracker {
	return &Tracker{
		startedAt: time.Now(),
		ops:       make(map[string]*OperationStat),
	}
}

// Record adds one completed call for the named operation. Failed calls
// contribute a duration sample too; no sample is ever dropped. The entry is
// created with zero counters on first use.
func (t *Tracker) Record(name string, d time.Duration, ok bool) {
	if d < 0 {
		d = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	op := t.ops[name]
	if op == nil {
		op = &OperationStat{}
		t.ops[name] = op
	}

	op.Count++
	if !ok {
		op.Failures++
	}
	op.Total += d
	if op.Count == 1 || d < op.Min {
		op.Min = d
	}
	if d > op.Max {
		op.Max = d
	}
	op.LastRun = time.Now()
}

// RecordCycle marks one work cycle as completed. A non-nil err becomes the
// snapshot's LastError; a later successful cycle clears it again.
func (t *Tracker) RecordCycle(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cycles++
	t.lastCycleAt = time.Now()
	if err != nil {
		t.lastError = err.Error()
	} else {
		t.lastError = ""
	}
}

// SetLastError records an error that happened outside any cycle, such as a
// setup failure. Cycle counters are untouched. A nil err does nothing.
func (t *Tracker) SetLastError(err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastError = err.Error()
}

// StartedAt returns the loop start time fixed at construction.
func (t *Tracker) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedAt
}

// Snapshot returns a deep copy of the current state. It reflects every
// Record call that completed before Snapshot returned; an empty tracker
// yields zero-valued aggregates.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	ops := make(map[string]OperationStat, len(t.ops))
	for name, op := range t.ops {
		ops[name] = *op
	}

	return Snapshot{
		Operations:      ops,
		CyclesCompleted: t.cycles,
		StartedAt:       t.startedAt,
		LastCycleAt:     t.lastCycleAt,
		LastError:       t.lastError,
		TakenAt:         time.Now(),
	}
}
