package stats

import (
	"sync"
	"time"
)

// Scope times one unit of work bound to a single operation name. The
// intended shape is:
//
//	scope := tracker.Begin("fetch")
//	defer scope.End()
//	...
//	if err != nil {
//	    scope.Fail()
//	    return err
//	}
//
// or, with a named return:
//
//	defer func() { scope.EndWith(err) }()
//
// End records exactly one sample regardless of how the frame exits; extra
// End calls are no-ops. A Scope is meant for use by one goroutine; spawn
// separate scopes for concurrent work.
type Scope struct {
	tracker *Tracker
	name    string
	start   time.Time
	once    sync.Once
	failed  bool
}

// Begin starts timing for the named operation. Scopes with different names
// nest independently, and beginning the same name again records a separate
// sample.
func (t *Tracker) Begin(name string) *Scope {
	return &Scope{
		tracker: t,
		name:    name,
		start:   time.Now(),
	}
}

// Fail marks the scope's outcome as a failure. Recording still happens at
// End.
func (s *Scope) Fail() {
	s.failed = true
}

// End records the elapsed time since Begin, classified as a success unless
// Fail was called. Only the first End has any effect.
func (s *Scope) End() {
	s.once.Do(func() {
		s.tracker.Record(s.name, time.Since(s.start), !s.failed)
	})
}

// EndWith classifies the outcome from err (non-nil means failure) and then
// Ends the scope.
func (s *Scope) EndWith(err error) {
	if err != nil {
		s.failed = true
	}
	s.End()
}
