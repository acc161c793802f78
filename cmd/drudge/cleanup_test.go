package main

import (
	"reflect"
	"testing"

	"github.com/drudgelabs/drudge/internal/manager"
)

func TestStateDirsFromManifest(t *testing.T) {
	m := &manager.Manifest{
		StateDir: "fleet-state",
		Workers: []manager.WorkerSpec{
			{ID: "a", Kind: "basic"},
			{ID: "b", Kind: "basic", StateDir: "own-state"},
			{ID: "c", Kind: "batch"},
		},
	}

	dirs := stateDirsFromManifest(m)
	if !reflect.DeepEqual(dirs, []string{"fleet-state", "own-state"}) {
		t.Errorf("expected deduplicated dirs, got %v", dirs)
	}
}

func TestStateDirsFromManifestNoWorkers(t *testing.T) {
	m := &manager.Manifest{StateDir: "fleet-state"}

	dirs := stateDirsFromManifest(m)
	if !reflect.DeepEqual(dirs, []string{"fleet-state"}) {
		t.Errorf("expected the manifest dir, got %v", dirs)
	}
}

func TestDoctorDirsWithoutManifest(t *testing.T) {
	dirs := doctorDirs(nil)
	if len(dirs) == 0 {
		t.Error("expected default directories")
	}
}

func TestCheckWritable(t *testing.T) {
	if err := checkWritable(t.TempDir()); err != nil {
		t.Errorf("temp dir should be writable: %v", err)
	}
}

func TestCheckWritableCreatesMissingDir(t *testing.T) {
	dir := t.TempDir() + "/nested/deeper"
	if err := checkWritable(dir); err != nil {
		t.Errorf("checkWritable should create missing dirs: %v", err)
	}
}
