package manager

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drudge.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
minVersion: v0.1.0
logDir: logs
statsDir: state
database: true
statusUrl: http://localhost:9000
workers:
  - workerId: billing
    worker: basic
    waitSeconds: 30
    workerParams:
      failureRate: 0.2
  - workerId: batcher
    worker: batch
    logDir: /var/log/batch
    statsDir: /var/lib/batch
    maxCycles: 10
`)

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}

	if m.MinVersion != "v0.1.0" {
		t.Errorf("expected minVersion v0.1.0, got %s", m.MinVersion)
	}
	if !m.Database {
		t.Error("expected database to be enabled")
	}
	if m.StatusURL != "http://localhost:9000" {
		t.Errorf("unexpected statusUrl: %s", m.StatusURL)
	}
	if len(m.Workers) != 2 {
		t.Fatalf("expected 2 workers, got %d", len(m.Workers))
	}
	if m.Workers[0].ID != "billing" || m.Workers[0].Kind != "basic" {
		t.Errorf("unexpected first worker: %+v", m.Workers[0])
	}
	if m.Workers[0].Params["failureRate"] != 0.2 {
		t.Errorf("expected failureRate param 0.2, got %v", m.Workers[0].Params["failureRate"])
	}
	if m.Workers[1].MaxCycles != 10 {
		t.Errorf("expected maxCycles 10, got %d", m.Workers[1].MaxCycles)
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestLoadManifestRejectsDuplicateIDs(t *testing.T) {
	path := writeManifest(t, `
workers:
  - workerId: billing
    worker: basic
  - workerId: billing
    worker: batch
`)

	_, err := LoadManifest(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate workerId") {
		t.Fatalf("expected duplicate workerId error, got %v", err)
	}
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
		wantErr  string
	}{
		{
			name:     "empty id",
			manifest: Manifest{Workers: []WorkerSpec{{Kind: "basic"}}},
			wantErr:  "workerId must not be empty",
		},
		{
			name:     "empty kind",
			manifest: Manifest{Workers: []WorkerSpec{{ID: "billing"}}},
			wantErr:  "worker kind must not be empty",
		},
		{
			name:     "bad min version",
			manifest: Manifest{MinVersion: "1.0"},
			wantErr:  "not a valid semantic version",
		},
		{
			name:     "negative wait",
			manifest: Manifest{Workers: []WorkerSpec{{ID: "billing", Kind: "basic", WaitSeconds: -1}}},
			wantErr:  "waitSeconds must be non-negative",
		},
		{
			name:     "negative max cycles",
			manifest: Manifest{Workers: []WorkerSpec{{ID: "billing", Kind: "basic", MaxCycles: -1}}},
			wantErr:  "maxCycles must be non-negative",
		},
		{
			name:     "valid",
			manifest: Manifest{MinVersion: "v0.2.0", Workers: []WorkerSpec{{ID: "billing", Kind: "basic"}}},
			wantErr:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.manifest.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid manifest, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCheckVersion(t *testing.T) {
	m := &Manifest{MinVersion: "v0.3.0"}

	if err := m.CheckVersion("v0.3.0"); err != nil {
		t.Errorf("equal version should pass: %v", err)
	}
	if err := m.CheckVersion("v1.0.0"); err != nil {
		t.Errorf("newer version should pass: %v", err)
	}
	if err := m.CheckVersion("v0.2.9"); err == nil {
		t.Error("older version should fail the gate")
	}
	if err := m.CheckVersion("garbage"); err == nil {
		t.Error("invalid running version should fail")
	}

	unset := &Manifest{}
	if err := unset.CheckVersion("v0.0.1"); err != nil {
		t.Errorf("no minVersion means no gate: %v", err)
	}
}

func TestConfigFor(t *testing.T) {
	m := &Manifest{
		LogDir:   "fleet-logs",
		StateDir: "fleet-state",
	}

	spec := WorkerSpec{ID: "billing", Kind: "basic", WaitSeconds: 45}
	cfg := m.ConfigFor(spec)

	if cfg.ID != "billing" {
		t.Errorf("expected id billing, got %s", cfg.ID)
	}
	if cfg.LogDir != "fleet-logs" || cfg.StateDir != "fleet-state" {
		t.Errorf("manifest defaults not applied: %s %s", cfg.LogDir, cfg.StateDir)
	}
	if cfg.Wait != 45*time.Second {
		t.Errorf("expected wait 45s, got %s", cfg.Wait)
	}
	if cfg.MaxCycles != 0 {
		t.Errorf("expected default maxCycles 0, got %d", cfg.MaxCycles)
	}

	override := WorkerSpec{
		ID:       "batcher",
		Kind:     "batch",
		LogDir:   "own-logs",
		StateDir: "own-state",
		Params:   map[string]interface{}{"batchSize": 5},
	}
	cfg = m.ConfigFor(override)

	if cfg.LogDir != "own-logs" || cfg.StateDir != "own-state" {
		t.Errorf("per-worker dirs should win: %s %s", cfg.LogDir, cfg.StateDir)
	}
	if cfg.Wait != 600*time.Second {
		t.Errorf("expected default wait, got %s", cfg.Wait)
	}
	if cfg.Params["batchSize"] != 5 {
		t.Errorf("params not carried: %v", cfg.Params)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("resolved config should validate: %v", err)
	}
}

func TestSpecLookup(t *testing.T) {
	m := &Manifest{Workers: []WorkerSpec{{ID: "billing", Kind: "basic"}}}

	spec, err := m.Spec("billing")
	if err != nil {
		t.Fatalf("Spec failed: %v", err)
	}
	if spec.Kind != "basic" {
		t.Errorf("unexpected spec: %+v", spec)
	}

	if _, err := m.Spec("ghost"); err == nil {
		t.Error("expected error for unknown worker id")
	}
}

func TestSaveDefaultManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drudge.yaml")

	if err := SaveDefaultManifest(path); err != nil {
		t.Fatalf("SaveDefaultManifest failed: %v", err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("starter manifest should load cleanly: %v", err)
	}
	if len(m.Workers) != 3 {
		t.Fatalf("expected 3 starter workers, got %d", len(m.Workers))
	}

	kinds := map[string]bool{}
	for _, spec := range m.Workers {
		kinds[spec.Kind] = true
	}
	if !kinds["basic"] || !kinds["batch"] || !kinds["file-probe"] {
		t.Errorf("starter manifest should cover the demo kinds and a probe: %v", kinds)
	}
}
