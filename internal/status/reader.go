package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadStatus loads the structured status for a worker id. A missing file
// surfaces as an error satisfying errors.Is(err, os.ErrNotExist); the
// worker may simply never have started.
func ReadStatus(dir, id string) (Status, error) {
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		return Status{}, err
	}

	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{}, fmt.Errorf("failed to parse status file for %s: %w", id, err)
	}
	return st, nil
}

// ListIDs returns the worker ids with a status file in dir, sorted. An
// absent directory yields an empty list.
func ListIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}

	sort.Strings(ids)
	return ids, nil
}

// IsRunning reports whether a live process owns the worker id: the PID file
// must exist and its recorded process must be alive. A PID file left behind
// by a killed process reads as not running.
func IsRunning(dir, id string) bool {
	rec, err := ReadPid(dir, id)
	if err != nil {
		return false
	}
	return rec.Alive()
}
