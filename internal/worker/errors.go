package worker

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning means a loop was started twice, or a live pid file
	// for the same worker id was found on startup.
	ErrAlreadyRunning = errors.New("worker is already running")

	// ErrNotRunning means Stop was called on a loop that never started or
	// has already finished.
	ErrNotRunning = errors.New("worker is not running")

	// ErrShutdownTimeout means the loop did not finish inside the caller's
	// deadline after a stop was requested.
	ErrShutdownTimeout = errors.New("timed out waiting for worker to stop")
)

// ConfigError reports an invalid Config field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// WorkError wraps a failure from the user's Work function, including a
// recovered panic. It marks one cycle failed; the loop keeps running.
type WorkError struct {
	Worker string
	Cycle  int
	Err    error
}

func (e *WorkError) Error() string {
	return fmt.Sprintf("worker %s: cycle %d: %v", e.Worker, e.Cycle, e.Err)
}

func (e *WorkError) Unwrap() error {
	return e.Err
}

// PersistError wraps a failure to deliver a status report to one sink.
// Reports are best-effort; these are logged, never fatal.
type PersistError struct {
	Sink string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("status sink %s: %v", e.Sink, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
