package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/drudgelabs/drudge/internal/status"
	"github.com/drudgelabs/drudge/internal/worker"
)

const (
	// startTimeout bounds how long StartWorker waits for the spawned
	// process to write its pid file.
	startTimeout = 5 * time.Second

	// maxConcurrentChecks bounds StatusAll fan-out.
	maxConcurrentChecks = 8
)

// RuntimeStatus pairs a manifest entry with what its on-disk artifacts say
// about it.
type RuntimeStatus struct {
	Spec   WorkerSpec
	Pid    *status.PidRecord
	Status *status.Status

	// Running means a pid file exists and its process is alive.
	Running bool

	// Stale means the artifacts claim a live worker but the process is
	// gone (crash or SIGKILL without cleanup).
	Stale bool
}

// Manager spawns and stops the workers a manifest describes. Workers run as
// detached processes created by re-invoking the drudge binary's run command,
// so the manager itself holds no in-process worker state.
type Manager struct {
	manifest *Manifest
	execPath string
	kinds    map[string]bool
}

// New creates a Manager for a manifest. When kinds are given, StartWorker
// refuses manifest entries using a kind outside that table instead of
// letting the spawn fail after the fact.
func New(manifest *Manifest, kinds ...string) (*Manager, error) {
	if manifest == nil {
		return nil, fmt.Errorf("manifest is required")
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locating drudge binary: %w", err)
	}

	m := &Manager{manifest: manifest, execPath: exe}
	if len(kinds) > 0 {
		m.kinds = make(map[string]bool, len(kinds))
		for _, kind := range kinds {
			m.kinds[kind] = true
		}
	}
	return m, nil
}

// SetExecutable overrides the binary used to spawn workers. Tests use this
// to substitute a stub.
func (m *Manager) SetExecutable(path string) {
	m.execPath = path
}

// Manifest returns the fleet definition this manager was built from.
func (m *Manager) Manifest() *Manifest {
	return m.manifest
}

// StartWorker spawns the named worker as a detached process and waits for
// its pid file to appear. Returns ErrAlreadyRunning if a live process
// already holds the worker's pid file.
func (m *Manager) StartWorker(ctx context.Context, id string) (status.PidRecord, error) {
	spec, err := m.manifest.Spec(id)
	if err != nil {
		return status.PidRecord{}, err
	}
	if m.kinds != nil && !m.kinds[spec.Kind] {
		return status.PidRecord{}, fmt.Errorf("worker %s uses unknown kind %q", id, spec.Kind)
	}
	cfg := m.manifest.ConfigFor(*spec)

	if rec, err := status.ReadPid(cfg.StateDir, id); err == nil && rec.Alive() {
		return rec, fmt.Errorf("%w: pid %d", worker.ErrAlreadyRunning, rec.PID)
	}

	args := []string{
		"run", spec.Kind,
		"--id", cfg.ID,
		"--log-dir", cfg.LogDir,
		"--state-dir", cfg.StateDir,
		"--wait", cfg.Wait.String(),
	}
	if cfg.MaxCycles > 0 {
		args = append(args, "--max-cycles", strconv.Itoa(cfg.MaxCycles))
	}
	if len(spec.Params) > 0 {
		raw, err := json.Marshal(spec.Params)
		if err != nil {
			return status.PidRecord{}, fmt.Errorf("encoding workerParams for %s: %w", id, err)
		}
		args = append(args, "--params", string(raw))
	}
	if m.manifest.Database {
		args = append(args, "--database")
	}
	if m.manifest.StatusURL != "" {
		args = append(args, "--status-url", m.manifest.StatusURL)
	}

	cmd := exec.Command(m.execPath, args...)
	// Own session, no controlling terminal. Stdout and stderr go to
	// /dev/null; the worker writes its own log file.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return status.PidRecord{}, fmt.Errorf("spawning worker %s: %w", id, err)
	}
	pid := cmd.Process.Pid

	// Reap on exit so a spawn that dies immediately is visible to the
	// startup probe. The worker itself outlives this process.
	go func() { _ = cmd.Wait() }()

	return m.awaitPidFile(ctx, cfg, pid)
}

// awaitPidFile polls until the spawned process writes a pid file carrying
// its own pid, or until it dies or the timeout passes.
func (m *Manager) awaitPidFile(ctx context.Context, cfg worker.Config, pid int) (status.PidRecord, error) {
	logHint := filepath.Join(cfg.LogDir, cfg.ID+".log")
	deadline := time.Now().Add(startTimeout)

	for {
		if rec, err := status.ReadPid(cfg.StateDir, cfg.ID); err == nil && rec.PID == pid {
			return rec, nil
		}
		if !processExists(pid) {
			return status.PidRecord{}, fmt.Errorf("worker %s exited during startup (pid %d); check %s", cfg.ID, pid, logHint)
		}
		if time.Now().After(deadline) {
			return status.PidRecord{}, fmt.Errorf("worker %s (pid %d) did not report within %v; check %s", cfg.ID, pid, startTimeout, logHint)
		}

		select {
		case <-ctx.Done():
			return status.PidRecord{}, ctx.Err()
		case <-time.After(exitPollInterval):
		}
	}
}

// StartResult is one worker's outcome from StartAll.
type StartResult struct {
	ID  string
	Rec status.PidRecord
	Err error
}

// StartAll starts every manifest worker in order, continuing past failures
// so one bad entry does not strand the rest of the fleet.
func (m *Manager) StartAll(ctx context.Context) []StartResult {
	results := make([]StartResult, 0, len(m.manifest.Workers))
	for _, spec := range m.manifest.Workers {
		rec, err := m.StartWorker(ctx, spec.ID)
		results = append(results, StartResult{ID: spec.ID, Rec: rec, Err: err})
	}
	return results
}

// StopWorker stops the named worker by signalling the process its pid file
// names. See StopByID for the escalation behavior.
func (m *Manager) StopWorker(id string, timeout time.Duration, force bool) (bool, error) {
	spec, err := m.manifest.Spec(id)
	if err != nil {
		return false, err
	}
	cfg := m.manifest.ConfigFor(*spec)
	return StopByID(cfg.StateDir, id, timeout, force)
}

// StopResult is one worker's outcome from StopAll.
type StopResult struct {
	ID    string
	Stale bool
	Err   error
}

// StopAll stops every manifest worker, several at a time since each stop
// may poll for the full timeout. Results follow manifest order.
func (m *Manager) StopAll(ctx context.Context, timeout time.Duration, force bool) ([]StopResult, error) {
	sem := semaphore.NewWeighted(maxConcurrentChecks)
	results := make([]StopResult, len(m.manifest.Workers))

	var wg sync.WaitGroup
	for i, spec := range m.manifest.Workers {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to acquire stop slot: %w", err)
		}
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			defer sem.Release(1)
			stale, err := m.StopWorker(id, timeout, force)
			results[i] = StopResult{ID: id, Stale: stale, Err: err}
		}(i, spec.ID)
	}
	wg.Wait()

	return results, nil
}

// IsRunning reports whether the named worker has a live process.
func (m *Manager) IsRunning(id string) bool {
	spec, err := m.manifest.Spec(id)
	if err != nil {
		return false
	}
	cfg := m.manifest.ConfigFor(*spec)
	return status.IsRunning(cfg.StateDir, id)
}

// Status reads one worker's runtime state from its artifacts.
func (m *Manager) Status(id string) (RuntimeStatus, error) {
	spec, err := m.manifest.Spec(id)
	if err != nil {
		return RuntimeStatus{}, err
	}
	return m.collect(*spec), nil
}

// StatusAll reads every manifest worker's runtime state, checking up to
// maxConcurrentChecks workers at a time.
func (m *Manager) StatusAll(ctx context.Context) ([]RuntimeStatus, error) {
	sem := semaphore.NewWeighted(maxConcurrentChecks)
	results := make([]RuntimeStatus, len(m.manifest.Workers))

	var wg sync.WaitGroup
	for i, spec := range m.manifest.Workers {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to acquire status check slot: %w", err)
		}
		wg.Add(1)
		// Each goroutine writes only its own slot.
		go func(i int, spec WorkerSpec) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = m.collect(spec)
		}(i, spec)
	}
	wg.Wait()

	return results, nil
}

func (m *Manager) collect(spec WorkerSpec) RuntimeStatus {
	cfg := m.manifest.ConfigFor(spec)
	rs := RuntimeStatus{Spec: spec}

	if rec, err := status.ReadPid(cfg.StateDir, spec.ID); err == nil {
		rs.Pid = &rec
		rs.Running = rec.Alive()
		rs.Stale = !rs.Running
	}

	if st, err := status.ReadStatus(cfg.StateDir, spec.ID); err == nil {
		rs.Status = &st
		// A report claiming a live state with no pid file means the
		// process was killed and its pid file swept.
		if rs.Pid == nil && st.State != string(worker.StateStopped) {
			rs.Stale = true
		}
	}

	return rs
}
