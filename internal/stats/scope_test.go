package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeRecordsSuccess(t *testing.T) {
	tr := NewTracker()

	scope := tr.Begin("fetch")
	time.Sleep(time.Millisecond)
	scope.End()

	op := tr.Snapshot().Operations["fetch"]
	assert.Equal(t, int64(1), op.Count)
	assert.Equal(t, int64(0), op.Failures)
	assert.Greater(t, op.Total, time.Duration(0))
}

func TestScopeFail(t *testing.T) {
	tr := NewTracker()

	scope := tr.Begin("fetch")
	scope.Fail()
	scope.End()

	op := tr.Snapshot().Operations["fetch"]
	assert.Equal(t, int64(1), op.Count)
	assert.Equal(t, int64(1), op.Failures)
}

func TestScopeEndWith(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantFailures int64
	}{
		{name: "nil error is success", err: nil, wantFailures: 0},
		{name: "non-nil error is failure", err: errors.New("boom"), wantFailures: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			scope := tr.Begin("op")
			scope.EndWith(tt.err)

			op := tr.Snapshot().Operations["op"]
			assert.Equal(t, int64(1), op.Count)
			assert.Equal(t, tt.wantFailures, op.Failures)
		})
	}
}

func TestScopeEndExactlyOnce(t *testing.T) {
	tr := NewTracker()

	scope := tr.Begin("fetch")
	scope.End()
	scope.End()
	scope.EndWith(errors.New("late failure is ignored"))

	op := tr.Snapshot().Operations["fetch"]
	assert.Equal(t, int64(1), op.Count, "repeated End calls must not re-record")
	assert.Equal(t, int64(0), op.Failures, "classification is fixed at the first End")
}

func TestScopeRecordsThroughPanic(t *testing.T) {
	tr := NewTracker()

	func() {
		defer func() {
			require.NotNil(t, recover(), "test body should have panicked")
		}()
		scope := tr.Begin("fetch")
		defer scope.End()
		panic("work blew up")
	}()

	op := tr.Snapshot().Operations["fetch"]
	assert.Equal(t, int64(1), op.Count, "deferred End runs while the panic unwinds")
}

func TestScopesForDifferentNamesAreIndependent(t *testing.T) {
	tr := NewTracker()

	outer := tr.Begin("outer")
	inner := tr.Begin("inner")
	inner.Fail()
	inner.End()
	outer.End()

	snap := tr.Snapshot()
	assert.Equal(t, int64(1), snap.Operations["outer"].Count)
	assert.Equal(t, int64(0), snap.Operations["outer"].Failures)
	assert.Equal(t, int64(1), snap.Operations["inner"].Failures)
}

func TestReentrantScopesSameName(t *testing.T) {
	tr := NewTracker()

	for i := 0; i < 3; i++ {
		scope := tr.Begin("fetch")
		scope.End()
	}

	op := tr.Snapshot().Operations["fetch"]
	assert.Equal(t, int64(3), op.Count, "each Begin records an independent sample")
}
