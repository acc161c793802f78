package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/drudgelabs/drudge/internal/control"
	"github.com/drudgelabs/drudge/internal/logging"
	"github.com/drudgelabs/drudge/internal/stats"
	"github.com/drudgelabs/drudge/internal/status"
	"github.com/drudgelabs/drudge/internal/storage"
)

// shutdownGrace bounds the stopping sequence (cleanup, final report,
// history close) once the cycle loop has exited. A fresh context is used
// because the run context is usually already cancelled at that point.
const shutdownGrace = 30 * time.Second

type namedSink struct {
	name string
	sink status.Sink
}

// Option configures optional loop collaborators.
type Option func(*Loop)

// WithSink adds a status sink alongside the file writer. The name appears
// in log lines when reports to it fail.
func WithSink(name string, s status.Sink) Option {
	return func(l *Loop) {
		l.extraSinks = append(l.extraSinks, namedSink{name: name, sink: s})
	}
}

// WithStore attaches the SQLite store: statuses mirror into it and each
// run gets a history row.
func WithStore(st *storage.Store) Option {
	return func(l *Loop) {
		l.store = st
		l.extraSinks = append(l.extraSinks, namedSink{name: "database", sink: st})
	}
}

// WithLogger injects a prebuilt logger instead of the per-worker log file.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithControlSocket enables the unix command socket in the state directory.
func WithControlSocket() Option {
	return func(l *Loop) {
		l.controlEnabled = true
	}
}

// Loop drives a Worker through the run lifecycle: setup, work cycles with
// waits in between, and an orderly stopping sequence. A Loop runs once;
// create a new one for a new run.
type Loop struct {
	cfg    Config
	worker Worker

	tracker    *stats.Tracker
	writer     *status.Writer
	extraSinks []namedSink
	sinks      []namedSink
	store      *storage.Store
	logger     *zap.Logger
	logClose   func()

	controlEnabled bool
	ctrl           *control.Server

	runID    string
	hostname string
	pid      int

	mu      sync.RWMutex
	state   State
	running bool
	runErr  error

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	writeGate rate.Sometimes
}

// New validates the config and prepares a loop. No artifacts are touched
// until Start.
func New(cfg Config, w Worker, opts ...Option) (*Loop, error) {
	if w == nil {
		return nil, fmt.Errorf("worker must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	l := &Loop{
		cfg:       cfg,
		worker:    w,
		tracker:   stats.NewTracker(),
		runID:     uuid.New().String(),
		hostname:  hostname,
		pid:       os.Getpid(),
		state:     StateInitializing,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		writeGate: rate.Sometimes{First: 1, Interval: cfg.StatusInterval},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// RunID returns the unique id of this run.
func (l *Loop) RunID() string {
	return l.runID
}

// Tracker returns the live statistics tracker for this run.
func (l *Loop) Tracker() *stats.Tracker {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tracker
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Err returns the error that aborted the run, if any. Cycle failures are
// not run errors; only setup failures end a run abnormally.
func (l *Loop) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.runErr
}

// Done returns a channel closed when the run has fully shut down.
func (l *Loop) Done() <-chan struct{} {
	return l.doneCh
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Start brings up the run's artifacts (log file, pid record, optional
// control socket) and launches the cycle loop in the background. It fails
// if another live process already holds this worker id's pid file.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	if l.state != StateInitializing {
		l.mu.Unlock()
		return fmt.Errorf("worker loop cannot be restarted (state %s)", l.state)
	}
	l.running = true
	l.tracker = stats.NewTracker()
	l.mu.Unlock()

	fail := func(err error) error {
		l.mu.Lock()
		l.running = false
		l.state = StateStopped
		l.mu.Unlock()
		return err
	}

	if l.logger == nil {
		logPath := filepath.Join(l.cfg.LogDir, l.cfg.ID+".log")
		logger, closeFn, err := logging.NewLogger(logPath,
			logging.WithLogLevel(l.cfg.LogLevel),
			logging.WithConsole(l.cfg.ConsoleLog))
		if err != nil {
			return fail(fmt.Errorf("failed to create logger: %w", err))
		}
		l.logger = logger
		l.logClose = closeFn
	}

	writer, err := status.NewWriter(l.cfg.StateDir)
	if err != nil {
		return fail(fmt.Errorf("failed to create status writer: %w", err))
	}
	l.writer = writer
	l.sinks = append([]namedSink{{name: "files", sink: writer}}, l.extraSinks...)

	// Refuse to run two loops under one worker id. A pid file whose
	// process is gone is a crash leftover and gets overwritten.
	if rec, err := status.ReadPid(l.cfg.StateDir, l.cfg.ID); err == nil && rec.Alive() {
		return fail(fmt.Errorf("%w: pid %d", ErrAlreadyRunning, rec.PID))
	}

	rec := status.PidRecord{
		WorkerID:  l.cfg.ID,
		RunID:     l.runID,
		PID:       l.pid,
		Hostname:  l.hostname,
		StartedAt: l.tracker.StartedAt().UTC(),
	}
	if err := l.writer.WritePid(rec); err != nil {
		return fail(&PersistError{Sink: "files", Err: err})
	}

	if l.store != nil {
		run := storage.Run{
			RunID:     l.runID,
			WorkerID:  l.cfg.ID,
			PID:       l.pid,
			Hostname:  l.hostname,
			StartedAt: l.tracker.StartedAt().UTC(),
		}
		if err := l.store.RecordRunStart(ctx, run); err != nil {
			l.logger.Warn("failed to record run start", zap.Error(err))
		}
	}

	if l.controlEnabled {
		socketPath := control.SocketPath(l.cfg.StateDir, l.cfg.ID)
		srv, err := control.NewServer(socketPath, l.handleCommand)
		if err == nil {
			err = srv.Start(ctx)
		}
		if err != nil {
			l.logger.Warn("control socket unavailable", zap.Error(err))
		} else {
			l.ctrl = srv
			l.logger.Debug("control socket listening", zap.String("path", socketPath))
		}
	}

	l.logger.Info("worker starting",
		zap.String("worker", l.cfg.ID),
		zap.String("kind", l.worker.Name()),
		zap.String("run_id", l.runID),
		zap.Int("pid", l.pid),
		zap.Duration("wait", l.cfg.Wait),
		zap.Int("max_cycles", l.cfg.MaxCycles))

	go l.run(ctx)
	return nil
}

// Stop requests a graceful stop and waits for the loop to finish. The wait
// is bounded by ctx; on expiry the loop keeps shutting down in the
// background and ErrShutdownTimeout is returned.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.RLock()
	running := l.running
	l.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}

	l.stopOnce.Do(func() { close(l.stopCh) })

	select {
	case <-l.doneCh:
		return nil
	case <-ctx.Done():
		return ErrShutdownTimeout
	}
}

// Run starts the loop and blocks until it finishes. Cancelling ctx triggers
// the same graceful stop as Stop.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Start(ctx); err != nil {
		return err
	}
	<-l.doneCh
	return l.Err()
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.doneCh)

	if err := l.setup(ctx); err != nil {
		l.logger.Error("setup failed", zap.Error(err))
		l.tracker.SetLastError(err)
		l.mu.Lock()
		l.runErr = err
		l.mu.Unlock()
		l.shutdown(false)
		return
	}

	l.setState(StateRunning)
	l.report(ctx)

	l.cycleLoop(ctx)
	l.shutdown(true)
}

func (l *Loop) setup(ctx context.Context) (err error) {
	init, ok := l.worker.(Initializer)
	if !ok {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("setup panicked: %v", r)
			l.logger.Error("setup panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()
	return init.Setup(ctx)
}

// cycleLoop runs cycles until a stop is requested or the cycle limit is
// reached. The wait between cycles measures cycle start to cycle start.
func (l *Loop) cycleLoop(ctx context.Context) {
	cycle := 0
	for {
		if l.stopRequested(ctx) {
			return
		}
		if l.cfg.MaxCycles > 0 && cycle >= l.cfg.MaxCycles {
			l.logger.Info("cycle limit reached", zap.Int("max_cycles", l.cfg.MaxCycles))
			return
		}

		cycle++
		cycleStart := time.Now()
		l.runCycle(ctx, cycle)
		l.writeGate.Do(func() { l.report(ctx) })

		if l.stopRequested(ctx) {
			return
		}
		if l.cfg.MaxCycles > 0 && cycle >= l.cfg.MaxCycles {
			l.logger.Info("cycle limit reached", zap.Int("max_cycles", l.cfg.MaxCycles))
			return
		}

		l.setState(StateWaiting)
		interrupted := l.waitBetweenCycles(ctx, time.Since(cycleStart))
		l.setState(StateRunning)
		if interrupted {
			return
		}
	}
}

// runCycle executes one work cycle. Failures and panics mark the cycle
// failed and are absorbed; the loop carries on.
func (l *Loop) runCycle(ctx context.Context, cycle int) {
	start := time.Now()
	scope := l.tracker.Begin(CycleOperation)

	err := l.invokeWork(ctx, cycle)
	scope.EndWith(err)
	l.tracker.RecordCycle(err)

	if err != nil {
		l.logger.Error("cycle failed", zap.Int("cycle", cycle), zap.Error(err))
	} else {
		l.logger.Debug("cycle complete",
			zap.Int("cycle", cycle),
			zap.Duration("duration", time.Since(start)))
	}
}

func (l *Loop) invokeWork(ctx context.Context, cycle int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &WorkError{Worker: l.cfg.ID, Cycle: cycle, Err: fmt.Errorf("panic: %v", r)}
			l.logger.Error("cycle panicked",
				zap.Int("cycle", cycle),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	if werr := l.worker.Work(ctx, l.tracker); werr != nil {
		return &WorkError{Worker: l.cfg.ID, Cycle: cycle, Err: werr}
	}
	return nil
}

// waitBetweenCycles sleeps out the remainder of the wait interval. Returns
// true if the sleep was cut short by a stop request.
func (l *Loop) waitBetweenCycles(ctx context.Context, elapsed time.Duration) bool {
	remaining := l.cfg.Wait - elapsed
	if remaining <= 0 {
		return false
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-l.stopCh:
		return true
	case <-timer.C:
		return false
	}
}

func (l *Loop) stopRequested(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-l.stopCh:
		return true
	default:
		return false
	}
}

// shutdown runs the stopping sequence: worker cleanup, final report, run
// history close, control socket teardown, pid removal.
func (l *Loop) shutdown(clean bool) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	l.setState(StateStopping)
	l.logger.Info("worker stopping")

	if fin, ok := l.worker.(Finalizer); ok {
		if err := l.cleanup(ctx, fin); err != nil {
			l.logger.Error("cleanup failed", zap.Error(err))
		}
	}

	l.setState(StateStopped)
	l.report(ctx)

	final := l.tracker.Snapshot()
	if l.store != nil {
		failures := final.Operations[CycleOperation].Failures
		if err := l.store.RecordRunEnd(ctx, l.runID, final.CyclesCompleted, failures, final.LastError, clean); err != nil {
			l.logger.Warn("failed to record run end", zap.Error(err))
		}
	}

	if l.ctrl != nil {
		_ = l.ctrl.Stop()
	}

	if err := l.writer.ClearPid(l.cfg.ID); err != nil {
		l.logger.Warn("failed to remove pid file", zap.Error(err))
	}

	l.logger.Info("worker stopped",
		zap.Int("cycles", final.CyclesCompleted),
		zap.String("uptime", status.FormatDuration(final.Elapsed())))

	l.mu.Lock()
	l.running = false
	l.mu.Unlock()

	if l.logClose != nil {
		l.logClose()
	}
}

func (l *Loop) cleanup(ctx context.Context, fin Finalizer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup panicked: %v", r)
		}
	}()
	return fin.Cleanup(ctx)
}

// report delivers the current status to every sink. Sink failures are
// logged and swallowed; losing a report never stops the loop.
func (l *Loop) report(ctx context.Context) {
	st := status.FromSnapshot(l.cfg.ID, l.runID, l.pid, string(l.State()), l.tracker.Snapshot())
	for _, ns := range l.sinks {
		if err := ns.sink.Report(ctx, st); err != nil {
			perr := &PersistError{Sink: ns.name, Err: err}
			l.logger.Warn("status report failed", zap.String("sink", ns.name), zap.Error(perr))
		}
	}
}

// handleCommand serves the control socket: live stats without touching the
// files on disk.
func (l *Loop) handleCommand(cmd control.Command) (map[string]interface{}, error) {
	switch cmd.Type {
	case control.CommandPing:
		return map[string]interface{}{
			"worker": l.cfg.ID,
			"runId":  l.runID,
			"state":  string(l.State()),
		}, nil
	case control.CommandState:
		return map[string]interface{}{"state": string(l.State())}, nil
	case control.CommandStats:
		st := status.FromSnapshot(l.cfg.ID, l.runID, l.pid, string(l.State()), l.tracker.Snapshot())
		return statusToMap(st)
	default:
		return nil, fmt.Errorf("unknown command: %s", cmd.Type)
	}
}

func statusToMap(st status.Status) (map[string]interface{}, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
