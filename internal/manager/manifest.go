// Package manager runs a fleet of workers defined in a YAML manifest:
// spawning each as a detached process, signalling it to stop, and reading
// back the status artifacts it leaves on disk.
package manager

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/drudgelabs/drudge/internal/worker"
)

// Manifest is the fleet definition loaded from YAML.
type Manifest struct {
	// MinVersion refuses to run under an older binary, e.g. "v0.2.0"
	MinVersion string `yaml:"minVersion,omitempty"`

	// LogDir and StateDir apply to workers that do not set their own
	LogDir   string `yaml:"logDir,omitempty"`
	StateDir string `yaml:"statsDir,omitempty"`

	// Database mirrors status and run history into a SQLite file in
	// each worker's state directory
	Database bool `yaml:"database,omitempty"`

	// StatusURL additionally posts every status report to
	// {statusUrl}/workers/{workerId}/status
	StatusURL string `yaml:"statusUrl,omitempty"`

	// Workers lists the fleet
	Workers []WorkerSpec `yaml:"workers"`
}

// WorkerSpec configures one worker in the manifest.
type WorkerSpec struct {
	// ID is the worker identity; unique within the manifest
	ID string `yaml:"workerId"`

	// Kind names the registered worker implementation
	Kind string `yaml:"worker"`

	LogDir      string                 `yaml:"logDir,omitempty"`
	StateDir    string                 `yaml:"statsDir,omitempty"`
	WaitSeconds int                    `yaml:"waitSeconds,omitempty"`
	MaxCycles   int                    `yaml:"maxCycles,omitempty"`
	Params      map[string]interface{} `yaml:"workerParams,omitempty"`
}

// LoadManifest loads a fleet manifest from a YAML file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest file: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks worker ids and kinds.
func (m *Manifest) Validate() error {
	if m.MinVersion != "" && !semver.IsValid(m.MinVersion) {
		return fmt.Errorf("minVersion %q is not a valid semantic version", m.MinVersion)
	}

	seen := make(map[string]bool, len(m.Workers))
	for i, spec := range m.Workers {
		if spec.ID == "" {
			return fmt.Errorf("worker %d: workerId must not be empty", i)
		}
		if spec.Kind == "" {
			return fmt.Errorf("worker %s: worker kind must not be empty", spec.ID)
		}
		if seen[spec.ID] {
			return fmt.Errorf("duplicate workerId: %s", spec.ID)
		}
		seen[spec.ID] = true
		if spec.WaitSeconds < 0 {
			return fmt.Errorf("worker %s: waitSeconds must be non-negative", spec.ID)
		}
		if spec.MaxCycles < 0 {
			return fmt.Errorf("worker %s: maxCycles must be non-negative", spec.ID)
		}
	}
	return nil
}

// CheckVersion verifies the running binary satisfies the manifest's
// minVersion gate.
func (m *Manifest) CheckVersion(current string) error {
	if m.MinVersion == "" {
		return nil
	}
	if !semver.IsValid(current) {
		return fmt.Errorf("running version %q is not a valid semantic version", current)
	}
	if semver.Compare(current, m.MinVersion) < 0 {
		return fmt.Errorf("manifest requires drudge %s or newer (running %s)", m.MinVersion, current)
	}
	return nil
}

// Spec returns the manifest entry for a worker id.
func (m *Manifest) Spec(id string) (*WorkerSpec, error) {
	for i := range m.Workers {
		if m.Workers[i].ID == id {
			return &m.Workers[i], nil
		}
	}
	return nil, fmt.Errorf("worker %s not in manifest", id)
}

// ConfigFor resolves a worker spec against the manifest defaults.
func (m *Manifest) ConfigFor(spec WorkerSpec) worker.Config {
	cfg := worker.DefaultConfig()
	cfg.ID = spec.ID

	if m.LogDir != "" {
		cfg.LogDir = m.LogDir
	}
	if m.StateDir != "" {
		cfg.StateDir = m.StateDir
	}
	if spec.LogDir != "" {
		cfg.LogDir = spec.LogDir
	}
	if spec.StateDir != "" {
		cfg.StateDir = spec.StateDir
	}
	if spec.WaitSeconds > 0 {
		cfg.Wait = time.Duration(spec.WaitSeconds) * time.Second
	}
	if spec.MaxCycles > 0 {
		cfg.MaxCycles = spec.MaxCycles
	}
	cfg.Params = spec.Params
	return cfg
}

// DefaultManifest returns a starter manifest: one worker of each demo kind
// plus a file probe watching the basic worker's own status artifact.
func DefaultManifest() *Manifest {
	return &Manifest{
		LogDir:   "logs",
		StateDir: "state",
		Workers: []WorkerSpec{
			{
				ID:          "basic-1",
				Kind:        "basic",
				WaitSeconds: 60,
			},
			{
				ID:          "batch-1",
				Kind:        "batch",
				WaitSeconds: 30,
				Params: map[string]interface{}{
					"batchSize": 25,
				},
			},
			{
				ID:          "monitor-1",
				Kind:        "file-probe",
				WaitSeconds: 120,
				Params: map[string]interface{}{
					"path":          "state/basic-1.json",
					"maxAgeSeconds": 300,
				},
			},
		},
	}
}

// SaveDefaultManifest writes the starter manifest to a file.
func SaveDefaultManifest(path string) error {
	m := DefaultManifest()

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing manifest file: %w", err)
	}

	return nil
}
