package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Writer persists status artifacts for one state directory. Writes go to a
// temporary sibling first and are renamed into place, so a concurrent
// reader never observes a partially written file. Writer implements Sink.
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir, creating the directory if
// needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("status directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create status directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the directory the writer persists into.
func (w *Writer) Dir() string {
	return w.dir
}

// StatsPath returns the human-readable stats file path for a worker id.
func (w *Writer) StatsPath(id string) string {
	return filepath.Join(w.dir, id+".stats")
}

// JSONPath returns the structured status file path for a worker id.
func (w *Writer) JSONPath(id string) string {
	return filepath.Join(w.dir, id+".json")
}

// Report writes both renderings of the status. The text file and the JSON
// file are written independently; if the first write fails the second is
// still attempted, and the first error wins.
func (w *Writer) Report(_ context.Context, st Status) error {
	var firstErr error

	text := renderText(st)
	if err := writeFileAtomic(w.StatsPath(st.WorkerID), []byte(text)); err != nil {
		firstErr = fmt.Errorf("failed to write stats file: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("failed to marshal status: %w", err)
		}
		return firstErr
	}
	data = append(data, '\n')

	if err := writeFileAtomic(w.JSONPath(st.WorkerID), data); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to write status file: %w", err)
	}

	return firstErr
}

// WritePid records the owning process for a worker id. Called once when the
// loop transitions to Running.
func (w *Writer) WritePid(rec PidRecord) error {
	return WritePid(w.dir, rec)
}

// ClearPid removes the PID marker. Called on clean shutdown; removing an
// already-absent marker is not an error.
func (w *Writer) ClearPid(id string) error {
	return RemovePid(w.dir, id)
}

// writeFileAtomic writes data to a temporary file and renames it over path.
// The rename is atomic on POSIX filesystems; the temp file is removed if
// the rename fails.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
