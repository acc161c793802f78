package main

import (
	"reflect"
	"testing"

	"github.com/drudgelabs/drudge/internal/manager"
)

func fleetManifest() *manager.Manifest {
	return &manager.Manifest{
		Workers: []manager.WorkerSpec{
			{ID: "billing", Kind: "basic"},
			{ID: "batcher", Kind: "batch"},
		},
	}
}

func TestResolveTargetsAll(t *testing.T) {
	targets, err := resolveTargets(fleetManifest(), nil, true)
	if err != nil {
		t.Fatalf("resolveTargets failed: %v", err)
	}
	if !reflect.DeepEqual(targets, []string{"billing", "batcher"}) {
		t.Errorf("expected manifest order, got %v", targets)
	}
}

func TestResolveTargetsNamed(t *testing.T) {
	targets, err := resolveTargets(fleetManifest(), []string{"batcher"}, false)
	if err != nil {
		t.Fatalf("resolveTargets failed: %v", err)
	}
	if !reflect.DeepEqual(targets, []string{"batcher"}) {
		t.Errorf("expected [batcher], got %v", targets)
	}
}

func TestResolveTargetsUnknownID(t *testing.T) {
	if _, err := resolveTargets(fleetManifest(), []string{"ghost"}, false); err == nil {
		t.Error("expected error for unknown worker id")
	}
}

func TestResolveTargetsNoArgs(t *testing.T) {
	if _, err := resolveTargets(fleetManifest(), nil, false); err == nil {
		t.Error("expected error when nothing is named")
	}
}

func TestResolveTargetsAllWithArgs(t *testing.T) {
	if _, err := resolveTargets(fleetManifest(), []string{"billing"}, true); err == nil {
		t.Error("expected error mixing --all with ids")
	}
}

func TestResolveTargetsEmptyManifest(t *testing.T) {
	if _, err := resolveTargets(&manager.Manifest{}, nil, true); err == nil {
		t.Error("expected error for empty manifest with --all")
	}
}
