package manager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/drudgelabs/drudge/internal/control"
	"github.com/drudgelabs/drudge/internal/status"
	"github.com/drudgelabs/drudge/internal/worker"
)

const exitPollInterval = 100 * time.Millisecond

// processExists checks if a process with the given PID exists
func processExists(pid int) bool {
	// Signal 0 probes for existence without delivering anything
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// waitForProcessExit waits for a process to exit, with timeout
func waitForProcessExit(pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if !processExists(pid) {
			return nil
		}
		time.Sleep(exitPollInterval)
	}

	return fmt.Errorf("timeout waiting for process %d to exit", pid)
}

// StopByID stops the worker process recorded in {stateDir}/{id}.pid: SIGINT
// for a graceful stop, escalating to SIGKILL when the timeout expires. A
// stale pid file (process already gone) is cleaned up and reported via the
// returned flag.
func StopByID(stateDir, id string, timeout time.Duration, force bool) (stale bool, err error) {
	rec, err := status.ReadPid(stateDir, id)
	if errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%w: no pid file for %s", worker.ErrNotRunning, id)
	}
	if err != nil {
		return false, fmt.Errorf("failed to read pid file: %w", err)
	}

	if !processExists(rec.PID) {
		// Crash leftover: the loop never got to remove its artifacts
		cleanupArtifacts(stateDir, id)
		return true, nil
	}

	sig := syscall.SIGINT
	if force {
		sig = syscall.SIGKILL
	}
	if err := syscall.Kill(rec.PID, sig); err != nil {
		return false, fmt.Errorf("failed to signal pid %d: %w", rec.PID, err)
	}

	if err := waitForProcessExit(rec.PID, timeout); err != nil {
		if force {
			return false, fmt.Errorf("%w: pid %d", worker.ErrShutdownTimeout, rec.PID)
		}
		// Escalate
		if killErr := syscall.Kill(rec.PID, syscall.SIGKILL); killErr != nil {
			return false, fmt.Errorf("failed to send SIGKILL after timeout: %w", killErr)
		}
		if killWaitErr := waitForProcessExit(rec.PID, 5*time.Second); killWaitErr != nil {
			return false, fmt.Errorf("%w: pid %d survived SIGKILL", worker.ErrShutdownTimeout, rec.PID)
		}
		// The worker is gone but never got to write its final status;
		// sweep what it left and report the stop as unclean.
		cleanupArtifacts(stateDir, id)
		return false, fmt.Errorf("%w: pid %d needed SIGKILL after %s", worker.ErrShutdownTimeout, rec.PID, timeout)
	}

	// A killed process leaves its artifacts behind
	if _, err := status.ReadPid(stateDir, id); err == nil {
		cleanupArtifacts(stateDir, id)
	}
	return false, nil
}

// cleanupArtifacts removes the pid file and control socket a dead worker
// left behind. Status files stay; they are the last known report.
func cleanupArtifacts(stateDir, id string) {
	_ = status.RemovePid(stateDir, id)
	_ = os.RemoveAll(control.SocketPath(stateDir, id))
}

// SweepStale removes leftover pid files and control sockets for workers
// whose processes are gone. Returns the swept worker ids; with dryRun the
// artifacts are reported but left in place.
func SweepStale(stateDir string, dryRun bool) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(stateDir, "*.pid"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", stateDir, err)
	}

	var stale []string
	for _, path := range matches {
		id := strings.TrimSuffix(filepath.Base(path), ".pid")
		rec, err := status.ReadPid(stateDir, id)
		if err == nil && rec.Alive() {
			continue
		}
		// Unreadable pid records count as stale too
		stale = append(stale, id)
		if !dryRun {
			cleanupArtifacts(stateDir, id)
		}
	}
	return stale, nil
}
