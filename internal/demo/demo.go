// Package demo ships two example workers: a basic fetch-and-process worker
// and a batching worker that flushes on a threshold and drains during
// cleanup. They exist to exercise the harness end to end and to show how
// worker code records operations.
package demo

import (
	"context"
	"math/rand"
	"time"

	"github.com/drudgelabs/drudge/internal/worker"
)

// Register adds the demo worker kinds to a registry.
func Register(r *worker.Registry) error {
	if err := r.Register("basic", func(id string, params map[string]interface{}) (worker.Worker, error) {
		return NewBasic(id, params)
	}); err != nil {
		return err
	}
	return r.Register("batch", func(id string, params map[string]interface{}) (worker.Worker, error) {
		return NewBatch(id, params)
	})
}

// sleepJitter sleeps a random duration up to max, honoring ctx.
func sleepJitter(ctx context.Context, max time.Duration) error {
	if max <= 0 {
		return nil
	}
	d := time.Duration(rand.Int63n(int64(max)))
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
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

func paramFloat(params map[string]interface{}, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
