package demo

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/drudgelabs/drudge/internal/stats"
)

// Batch accumulates items across cycles and flushes once a threshold is
// reached. Cleanup drains whatever is still pending so no item is lost on
// shutdown.
type Batch struct {
	id        string
	batchSize int
	flushCost time.Duration

	pending int
	tracker *stats.Tracker
}

// NewBatch builds a batching worker.
//
// Params:
//   - batchSize: items to accumulate before flushing (default 10)
//   - flushCostMs: upper bound for the simulated flush latency (default 20)
func NewBatch(id string, params map[string]interface{}) (*Batch, error) {
	b := &Batch{
		id:        id,
		batchSize: 10,
		flushCost: 20 * time.Millisecond,
	}

	if v, ok := paramInt(params, "batchSize"); ok {
		if v < 1 {
			return nil, fmt.Errorf("batchSize must be at least 1 (got %d)", v)
		}
		b.batchSize = v
	}
	if v, ok := paramInt(params, "flushCostMs"); ok {
		if v < 0 {
			return nil, fmt.Errorf("flushCostMs must be non-negative (got %d)", v)
		}
		b.flushCost = time.Duration(v) * time.Millisecond
	}

	return b, nil
}

func (b *Batch) Name() string { return "batch" }

// Work collects a few items per cycle and flushes when the batch is full.
// The loop calls Work and Cleanup from one goroutine, so the pending count
// needs no lock.
func (b *Batch) Work(ctx context.Context, tracker *stats.Tracker) error {
	b.tracker = tracker

	scope := tracker.Begin("collect")
	b.pending += 1 + rand.Intn(5)
	scope.End()

	if b.pending >= b.batchSize {
		return b.flush(ctx, tracker)
	}
	return nil
}

// Cleanup flushes the partial batch left over when the loop stops.
func (b *Batch) Cleanup(ctx context.Context) error {
	if b.pending == 0 || b.tracker == nil {
		return nil
	}
	return b.flush(ctx, b.tracker)
}

func (b *Batch) flush(ctx context.Context, tracker *stats.Tracker) (err error) {
	scope := tracker.Begin("flush")
	defer func() { scope.EndWith(err) }()

	if err = sleepJitter(ctx, b.flushCost); err != nil {
		return err
	}
	b.pending = 0
	return nil
}

// Pending reports the number of items waiting for the next flush.
func (b *Batch) Pending() int { return b.pending }
