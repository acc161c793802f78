package probes

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/drudgelabs/drudge/internal/stats"
)

// File checks that a path exists and, optionally, that it has been
// modified recently. Useful for watching heartbeat files, export drops,
// or another worker's status artifacts.
type File struct {
	id     string
	path   string
	maxAge time.Duration
}

// NewFile builds a file probe.
//
// Params:
//   - path: file to check (required)
//   - maxAgeSeconds: fail when the file is older than this (0 = existence only)
func NewFile(id string, params map[string]interface{}) (*File, error) {
	path, err := requireString(params, "path")
	if err != nil {
		return nil, err
	}

	f := &File{id: id, path: path}

	if v, ok := paramInt(params, "maxAgeSeconds"); ok {
		if v < 0 {
			return nil, fmt.Errorf("maxAgeSeconds must be non-negative (got %d)", v)
		}
		f.maxAge = time.Duration(v) * time.Second
	}

	return f, nil
}

func (f *File) Name() string { return "file-probe" }

func (f *File) Work(ctx context.Context, tracker *stats.Tracker) (err error) {
	scope := tracker.Begin("stat")
	defer func() { scope.EndWith(err) }()

	info, err := os.Stat(f.path)
	if err != nil {
		return fmt.Errorf("probe target unavailable: %w", err)
	}

	if f.maxAge > 0 {
		age := time.Since(info.ModTime())
		if age > f.maxAge {
			return fmt.Errorf("%s is stale: not modified for %s (limit %s)",
				f.path, age.Round(time.Second), f.maxAge)
		}
	}
	return nil
}
