package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drudgelabs/drudge/internal/demo"
	"github.com/drudgelabs/drudge/internal/manager"
	"github.com/drudgelabs/drudge/internal/probes"
	"github.com/drudgelabs/drudge/internal/worker"
)

// version is checked against the manifest's minVersion gate.
const version = "v0.3.0"

var manifestPath string

var rootCmd = &cobra.Command{
	Use:   "drudge",
	Short: "Long-running worker harness",
	Long: `Drudge runs small periodic workers as long-lived processes.

Each worker executes one unit of work per cycle, sleeps, and repeats until
stopped. Progress is visible from the outside without touching the process:
a pid file, a human-readable stats file, a JSON status file, and a rotating
log, all kept fresh while the worker runs.

Start with the built-in demo fleet:

  drudge workers --init     # write a starter drudge.yaml
  drudge start --all        # spawn the fleet
  drudge status             # see how it is doing
  drudge stop --all         # wind it down`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "drudge.yaml", "Fleet manifest file")
}

// loadManifest loads and version-gates the fleet manifest. Fleet commands
// cannot do anything useful without one, so failure exits.
func loadManifest() *manager.Manifest {
	m, err := manager.LoadManifest(manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Run 'drudge workers --init' to create a starter manifest\n")
		}
		os.Exit(1)
	}
	if err := m.CheckVersion(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return m
}

func newManager() *manager.Manager {
	m := loadManifest()
	registry, err := builtinRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	mgr, err := manager.New(m, registry.Kinds()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return mgr
}

// builtinRegistry builds the registry of shipped worker kinds: the demo
// workers plus the monitoring probes.
func builtinRegistry() (*worker.Registry, error) {
	r := worker.NewRegistry()
	if err := demo.Register(r); err != nil {
		return nil, err
	}
	if err := probes.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}
