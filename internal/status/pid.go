package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// PidRecord identifies the process that owns a worker id. Its absence, or
// presence with a dead PID, tells an external reader the worker is not
// running.
type PidRecord struct {
	WorkerID  string    `json:"workerId"`
	RunID     string    `json:"runId"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"startedAt"`
}

// PidPath returns the PID marker path for a worker id in dir.
func PidPath(dir, id string) string {
	return filepath.Join(dir, id+".pid")
}

// WritePid atomically writes the PID record for rec.WorkerID.
func WritePid(dir string, rec PidRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pid record: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(PidPath(dir, rec.WorkerID), data); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// ReadPid loads the PID record for a worker id. A missing file surfaces as
// an error satisfying errors.Is(err, os.ErrNotExist).
func ReadPid(dir, id string) (PidRecord, error) {
	data, err := os.ReadFile(PidPath(dir, id))
	if err != nil {
		return PidRecord{}, err
	}

	var rec PidRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return PidRecord{}, fmt.Errorf("failed to parse pid file for %s: %w", id, err)
	}
	return rec, nil
}

// RemovePid deletes the PID marker. Removing a marker that is already gone
// succeeds.
func RemovePid(dir, id string) error {
	err := os.Remove(PidPath(dir, id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove pid file: %w", err)
	}
	return nil
}

// Alive reports whether the recorded process still exists, via signal 0.
// EPERM means the process exists but belongs to another user, which still
// counts as alive.
func (r PidRecord) Alive() bool {
	if r.PID <= 0 {
		return false
	}
	err := syscall.Kill(r.PID, syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
