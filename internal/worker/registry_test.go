package worker

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/drudgelabs/drudge/internal/stats"
)

type nopWorker struct{ id string }

func (w *nopWorker) Name() string { return w.id }

func (w *nopWorker) Work(ctx context.Context, tracker *stats.Tracker) error { return nil }

func nopFactory(id string, params map[string]interface{}) (Worker, error) {
	return &nopWorker{id: id}, nil
}

func TestRegistryRegisterAndCreate(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("nop", nopFactory); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	w, err := r.Create("nop", "worker-1", nil)
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	if w.Name() != "worker-1" {
		t.Errorf("Factory should receive the worker id, got %s", w.Name())
	}
}

func TestRegistryDuplicateKind(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("nop", nopFactory); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	err := r.Register("nop", nopFactory)
	if err == nil {
		t.Fatal("Expected error for duplicate kind")
	}
	if !strings.Contains(err.Error(), "already registered") {
		t.Errorf("Error should mention duplicate registration, got %v", err)
	}
}

func TestRegistryUnknownKind(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("nop", nopFactory); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	_, err := r.Create("missing", "worker-1", nil)
	if err == nil {
		t.Fatal("Expected error for unknown kind")
	}
	// The error names the known kinds to help the operator
	if !strings.Contains(err.Error(), "nop") {
		t.Errorf("Error should list known kinds, got %v", err)
	}
}

func TestRegistryRejectsEmptyKindAndNilFactory(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("", nopFactory); err == nil {
		t.Error("Expected error for empty kind")
	}
	if err := r.Register("nop", nil); err == nil {
		t.Error("Expected error for nil factory")
	}
}

func TestRegistryKindsSorted(t *testing.T) {
	r := NewRegistry()
	for _, kind := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(kind, nopFactory); err != nil {
			t.Fatalf("Failed to register %s: %v", kind, err)
		}
	}

	want := []string{"alpha", "mid", "zeta"}
	if got := r.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("Kinds mismatch: got %v, want %v", got, want)
	}
}
