// Package worker implements the execution loop that drives a long-running
// worker process: repeated work cycles separated by an interruptible wait,
// per-operation statistics, and liveness artifacts (pid file, status files,
// rotating log) refreshed as the loop runs.
package worker

import (
	"context"

	"github.com/drudgelabs/drudge/internal/stats"
)

// Worker is the unit of user work driven by a Loop. Work is called once per
// cycle; returning an error marks the cycle failed without stopping the
// loop. The tracker is shared with the loop so operations recorded inside
// Work land in the same status artifacts.
type Worker interface {
	Name() string
	Work(ctx context.Context, tracker *stats.Tracker) error
}

// Initializer is implemented by workers that need one-time setup before the
// first cycle. A setup error aborts the run before any cycle executes.
type Initializer interface {
	Setup(ctx context.Context) error
}

// Finalizer is implemented by workers that need teardown during shutdown.
// Cleanup runs before the final status report so any operations it records
// are included.
type Finalizer interface {
	Cleanup(ctx context.Context) error
}

// State is the worker loop lifecycle state.
type State string

const (
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateWaiting      State = "waiting" // between cycles
	StateStopping     State = "stopping"
	StateStopped      State = "stopped"
)

// CycleOperation is the tracked operation name covering each full cycle,
// including failed ones.
const CycleOperation = "cycle"
