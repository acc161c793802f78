package status

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/drudgelabs/drudge/internal/stats"
)

func testSnapshot() stats.Snapshot {
	now := time.Now()
	return stats.Snapshot{
		Operations: map[string]stats.OperationStat{
			"fetch": {
				Count:    4,
				Failures: 1,
				Total:    1700 * time.Millisecond,
				Min:      200 * time.Millisecond,
				Max:      500 * time.Millisecond,
				LastRun:  now,
			},
			"store": {
				Count:   2,
				Total:   100 * time.Millisecond,
				Min:     40 * time.Millisecond,
				Max:     60 * time.Millisecond,
				LastRun: now,
			},
		},
		CyclesCompleted: 4,
		StartedAt:       now.Add(-10 * time.Second),
		LastCycleAt:     now,
		TakenAt:         now,
	}
}

func TestWriterReportWritesBothFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	st := FromSnapshot("fetcher", "run-1", 1234, "running", testSnapshot())
	if err := w.Report(context.Background(), st); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	text, err := os.ReadFile(w.StatsPath("fetcher"))
	if err != nil {
		t.Fatalf("stats file not written: %v", err)
	}
	for _, want := range []string{"Worker ID: fetcher", "Status: running", "Total Cycles: 4", "fetch: count=4 failures=1"} {
		if !strings.Contains(string(text), want) {
			t.Errorf("stats file missing %q\ngot:\n%s", want, text)
		}
	}

	if _, err := os.Stat(w.JSONPath("fetcher")); err != nil {
		t.Fatalf("json file not written: %v", err)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	snap := testSnapshot()
	written := FromSnapshot("fetcher", "run-1", 1234, "running", snap)
	if err := w.Report(context.Background(), written); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	read, err := ReadStatus(dir, "fetcher")
	if err != nil {
		t.Fatalf("ReadStatus failed: %v", err)
	}

	if read.WorkerID != written.WorkerID {
		t.Errorf("workerId = %q, want %q", read.WorkerID, written.WorkerID)
	}
	if read.CyclesCompleted != written.CyclesCompleted {
		t.Errorf("cyclesCompleted = %d, want %d", read.CyclesCompleted, written.CyclesCompleted)
	}
	if len(read.Operations) != len(written.Operations) {
		t.Fatalf("operations = %d entries, want %d", len(read.Operations), len(written.Operations))
	}
	for name, wantOp := range written.Operations {
		gotOp, ok := read.Operations[name]
		if !ok {
			t.Errorf("operation %q missing after round trip", name)
			continue
		}
		if gotOp.Count != wantOp.Count {
			t.Errorf("%s.count = %d, want %d", name, gotOp.Count, wantOp.Count)
		}
		if gotOp.Failures != wantOp.Failures {
			t.Errorf("%s.failures = %d, want %d", name, gotOp.Failures, wantOp.Failures)
		}
	}
}

func TestReportLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	st := FromSnapshot("fetcher", "run-1", 1234, "running", testSnapshot())
	for i := 0; i < 3; i++ {
		if err := w.Report(context.Background(), st); err != nil {
			t.Fatalf("Report failed: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestReportToUnwritableDirectoryFails(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if err := os.Chmod(dir, 0500); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0755) })

	st := FromSnapshot("fetcher", "run-1", 1234, "running", testSnapshot())
	if err := w.Report(context.Background(), st); err == nil {
		t.Error("Report to unwritable directory should fail")
	}
}

func TestNewWriterCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	if _, err := NewWriter(dir); err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestNewWriterRequiresDir(t *testing.T) {
	if _, err := NewWriter(""); err == nil {
		t.Error("empty directory should be rejected")
	}
}

func TestFromSnapshotComputesSeconds(t *testing.T) {
	st := FromSnapshot("fetcher", "run-1", 1, "running", testSnapshot())

	op := st.Operations["fetch"]
	if op.AvgDurationSeconds != 0.425 {
		t.Errorf("avgDurationSeconds = %v, want 0.425", op.AvgDurationSeconds)
	}
	if op.MinDurationSeconds != 0.2 {
		t.Errorf("minDurationSeconds = %v, want 0.2", op.MinDurationSeconds)
	}
	if op.RateOpsPerSec <= 0 {
		t.Errorf("rateOpsPerSec = %v, want > 0", op.RateOpsPerSec)
	}
}

func TestFromSnapshotOmitsZeroLastCycle(t *testing.T) {
	snap := testSnapshot()
	snap.LastCycleAt = time.Time{}

	st := FromSnapshot("fetcher", "run-1", 1, "initializing", snap)
	if st.LastCycleAt != nil {
		t.Errorf("lastCycleAt = %v, want nil before the first cycle", st.LastCycleAt)
	}
}
