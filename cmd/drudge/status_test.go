package main

import (
	"strings"
	"testing"

	"github.com/drudgelabs/drudge/internal/manager"
	"github.com/drudgelabs/drudge/internal/status"
)

func TestOpSummary(t *testing.T) {
	op := status.OperationStatus{
		Count:              123,
		Failures:           3,
		AvgDurationSeconds: 0.042,
		RateOpsPerSec:      1.25,
	}

	got := opSummary("fetch", op)
	want := "fetch: 120 ok, 3 failed, avg 42ms, 1.25/s"
	if got != want {
		t.Errorf("opSummary = %q, want %q", got, want)
	}
}

func TestOpSummaryZeroes(t *testing.T) {
	got := opSummary("idle", status.OperationStatus{})
	if !strings.Contains(got, "0 ok, 0 failed") {
		t.Errorf("unexpected summary for zero op: %q", got)
	}
}

func TestOperationLinesSorted(t *testing.T) {
	ops := map[string]status.OperationStatus{
		"process": {Count: 1},
		"fetch":   {Count: 2},
		"flush":   {Count: 3},
	}

	lines := operationLines(ops)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for i, prefix := range []string{"fetch:", "flush:", "process:"} {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
}

func TestSummarize(t *testing.T) {
	results := []manager.RuntimeStatus{
		{Running: true},
		{Running: true},
		{Stale: true},
		{},
	}

	running, stale, stopped := summarize(results)
	if running != 2 || stale != 1 || stopped != 1 {
		t.Errorf("summarize = %d/%d/%d, want 2/1/1", running, stale, stopped)
	}
}
