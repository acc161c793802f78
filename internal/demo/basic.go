package demo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/drudgelabs/drudge/internal/stats"
)

// Basic simulates a fetch-then-process pipeline. Each cycle fetches a
// random batch of records and processes them, with a configurable chance
// of the upstream failing.
type Basic struct {
	id          string
	failureRate float64
	maxLatency  time.Duration
}

// NewBasic builds a basic worker.
//
// Params:
//   - failureRate: probability (0..1) that a fetch fails (default 0.1)
//   - maxLatencyMs: upper bound for the simulated call latency (default 50)
func NewBasic(id string, params map[string]interface{}) (*Basic, error) {
	b := &Basic{
		id:          id,
		failureRate: 0.1,
		maxLatency:  50 * time.Millisecond,
	}

	if v, ok := paramFloat(params, "failureRate"); ok {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("failureRate must be between 0 and 1 (got %v)", v)
		}
		b.failureRate = v
	}
	if v, ok := paramInt(params, "maxLatencyMs"); ok {
		if v < 0 {
			return nil, fmt.Errorf("maxLatencyMs must be non-negative (got %d)", v)
		}
		b.maxLatency = time.Duration(v) * time.Millisecond
	}

	return b, nil
}

func (b *Basic) Name() string { return "basic" }

func (b *Basic) Work(ctx context.Context, tracker *stats.Tracker) error {
	records, err := b.fetch(ctx, tracker)
	if err != nil {
		return err
	}
	return b.process(ctx, tracker, records)
}

func (b *Basic) fetch(ctx context.Context, tracker *stats.Tracker) (n int, err error) {
	scope := tracker.Begin("fetch")
	defer func() { scope.EndWith(err) }()

	if err = sleepJitter(ctx, b.maxLatency); err != nil {
		return 0, err
	}
	if rand.Float64() < b.failureRate {
		return 0, errors.New("upstream unavailable")
	}
	return 10 + rand.Intn(90), nil
}

func (b *Basic) process(ctx context.Context, tracker *stats.Tracker, records int) (err error) {
	scope := tracker.Begin("process")
	defer func() { scope.EndWith(err) }()

	// Processing cost scales with batch size
	perRecord := b.maxLatency / 100
	if err = sleepJitter(ctx, time.Duration(records)*perRecord); err != nil {
		return err
	}
	return nil
}
