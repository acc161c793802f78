// Package probes ships ready-made monitoring workers: a file probe that
// checks a path exists and stays fresh, an HTTP probe that checks an
// endpoint answers, and a db probe that checks a SQLite database opens
// and passes a quick integrity check. Each cycle is one check; a failed
// check fails the cycle and shows up in the stats, and the loop carries
// on probing.
package probes

import (
	"fmt"

	"github.com/drudgelabs/drudge/internal/worker"
)

// Register adds the probe worker kinds to a registry.
func Register(r *worker.Registry) error {
	if err := r.Register("file-probe", func(id string, params map[string]interface{}) (worker.Worker, error) {
		return NewFile(id, params)
	}); err != nil {
		return err
	}
	if err := r.Register("http-probe", func(id string, params map[string]interface{}) (worker.Worker, error) {
		return NewHTTP(id, params)
	}); err != nil {
		return err
	}
	return r.Register("db-probe", func(id string, params map[string]interface{}) (worker.Worker, error) {
		return NewDB(id, params)
	})
}

func paramString(params map[string]interface{}, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func paramInt(params map[string]interface{}, key string) (int, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func requireString(params map[string]interface{}, key string) (string, error) {
	s, ok := paramString(params, key)
	if !ok || s == "" {
		return "", fmt.Errorf("param %q is required", key)
	}
	return s, nil
}
