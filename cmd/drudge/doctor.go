package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/drudgelabs/drudge/internal/control"
	"github.com/drudgelabs/drudge/internal/manager"
	"github.com/drudgelabs/drudge/internal/status"
	"github.com/drudgelabs/drudge/internal/storage"
	"github.com/drudgelabs/drudge/internal/worker"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check drudge configuration and environment health",
	Long: `Run health checks to diagnose common configuration and environment issues.

This command checks:
- Manifest existence, validity, and version gate
- Worker kinds against the built-in registry
- Log and state directory permissions
- Run history database accessibility
- Liveness of the manifest's workers and their control sockets

Stale pid files and orphaned control sockets can be repaired in place
with --fix; everything else is report-only.

Exit codes:
  0 - All checks passed
  1 - One or more checks failed
  2 - Critical failures that prevent workers from running`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		fix, _ := cmd.Flags().GetBool("fix")

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("Running drudge health checks...\n\n")

		var failures []string
		var warnings []string
		var criticalFailures []string

		// Check 1: Manifest
		fmt.Printf("%s Manifest\n", cyan("→"))
		m, err := manager.LoadManifest(manifestPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				warnings = append(warnings, "No manifest found (fleet commands need one)")
				fmt.Printf("  %s No manifest at %s\n", yellow("⚠"), manifestPath)
				fmt.Printf("    Run 'drudge workers --init' to create one\n")
			} else {
				failures = append(failures, fmt.Sprintf("Manifest invalid: %v", err))
				fmt.Printf("  %s Manifest invalid\n", red("✗"))
				if verbose {
					fmt.Printf("    Error: %v\n", err)
				}
			}
		} else {
			fmt.Printf("  %s Manifest loaded (%d workers)\n", green("✓"), len(m.Workers))
			if err := m.CheckVersion(version); err != nil {
				failures = append(failures, fmt.Sprintf("Version gate: %v", err))
				fmt.Printf("  %s %v\n", red("✗"), err)
			} else if m.MinVersion != "" {
				fmt.Printf("  %s Version gate satisfied (needs %s, running %s)\n", green("✓"), m.MinVersion, version)
			}
		}

		// Check 2: Worker kinds
		fmt.Printf("%s Worker kinds\n", cyan("→"))
		registry, err := builtinRegistry()
		if err != nil {
			criticalFailures = append(criticalFailures, fmt.Sprintf("Registry broken: %v", err))
			fmt.Printf("  %s Failed to build registry\n", red("✗"))
		} else {
			known := make(map[string]bool)
			for _, kind := range registry.Kinds() {
				known[kind] = true
			}
			fmt.Printf("  %s Registered kinds: %v\n", green("✓"), registry.Kinds())

			if m != nil {
				for _, spec := range m.Workers {
					if !known[spec.Kind] {
						failures = append(failures, fmt.Sprintf("Worker %s uses unknown kind %q", spec.ID, spec.Kind))
						fmt.Printf("  %s %s uses unknown kind %q\n", red("✗"), spec.ID, spec.Kind)
					}
				}
			}
		}

		// Check 3: Directories
		fmt.Printf("%s Directories\n", cyan("→"))
		for _, dir := range doctorDirs(m) {
			if err := checkWritable(dir); err != nil {
				criticalFailures = append(criticalFailures, fmt.Sprintf("Directory %s not writable: %v", dir, err))
				fmt.Printf("  %s %s not writable\n", red("✗"), dir)
				if verbose {
					fmt.Printf("    Error: %v\n", err)
				}
			} else {
				fmt.Printf("  %s %s writable\n", green("✓"), dir)
			}
		}

		// Check 4: Database
		if m != nil && m.Database {
			fmt.Printf("%s Database\n", cyan("→"))
			for _, dir := range stateDirsFromManifest(m) {
				dbPath := storage.DefaultPath(dir)
				store, err := storage.Open(dbPath)
				if err != nil {
					failures = append(failures, fmt.Sprintf("Database %s unusable: %v", dbPath, err))
					fmt.Printf("  %s %s unusable\n", red("✗"), dbPath)
					if verbose {
						fmt.Printf("    Error: %v\n", err)
					}
					continue
				}
				store.Close()
				fmt.Printf("  %s %s accessible\n", green("✓"), dbPath)
			}
		}

		// Check 5: Workers
		if m != nil && len(m.Workers) > 0 {
			fmt.Printf("%s Workers\n", cyan("→"))
			for _, spec := range m.Workers {
				stateDir := m.ConfigFor(spec).StateDir
				rec, err := status.ReadPid(stateDir, spec.ID)
				if err != nil {
					sock := control.SocketPath(stateDir, spec.ID)
					if _, serr := os.Stat(sock); serr == nil {
						if fix {
							os.Remove(sock)
							fmt.Printf("  %s %s removed orphaned control socket\n", green("✓"), spec.ID)
						} else {
							warnings = append(warnings, fmt.Sprintf("Worker %s left an orphaned control socket", spec.ID))
							fmt.Printf("  %s %s orphaned control socket (rerun with --fix)\n", yellow("⚠"), spec.ID)
						}
						continue
					}
					fmt.Printf("  %s %s not running\n", green("✓"), spec.ID)
					continue
				}
				if !rec.Alive() {
					if fix {
						if _, err := manager.StopByID(stateDir, spec.ID, 0, false); err != nil {
							failures = append(failures, fmt.Sprintf("Worker %s stale pid file could not be swept: %v", spec.ID, err))
							fmt.Printf("  %s %s failed to sweep stale pid file\n", red("✗"), spec.ID)
						} else {
							fmt.Printf("  %s %s swept stale pid file (pid %d)\n", green("✓"), spec.ID, rec.PID)
						}
						continue
					}
					warnings = append(warnings, fmt.Sprintf("Worker %s has a stale pid file (pid %d)", spec.ID, rec.PID))
					fmt.Printf("  %s %s stale pid file (pid %d)\n", yellow("⚠"), spec.ID, rec.PID)
					fmt.Printf("    Run 'drudge cleanup stale' or rerun with --fix\n")
					continue
				}

				fmt.Printf("  %s %s running (pid %d)\n", green("✓"), spec.ID, rec.PID)
				client := control.NewClient(control.SocketPath(stateDir, spec.ID))
				if resp, err := client.Ping(); err != nil || !resp.Success {
					warnings = append(warnings, fmt.Sprintf("Worker %s control socket unreachable", spec.ID))
					fmt.Printf("  %s %s control socket unreachable\n", yellow("⚠"), spec.ID)
				} else {
					fmt.Printf("  %s %s control socket responsive\n", green("✓"), spec.ID)
				}
			}
		}

		// Summary
		fmt.Println()
		if len(criticalFailures) > 0 {
			fmt.Printf("%s %d critical failure(s) prevent workers from running\n", red("✗"), len(criticalFailures))
			for _, f := range criticalFailures {
				fmt.Printf("  - %s\n", f)
			}
			os.Exit(2)
		}
		if len(failures) > 0 {
			fmt.Printf("%s %d check(s) failed\n", red("✗"), len(failures))
			for _, f := range failures {
				fmt.Printf("  - %s\n", f)
			}
			if len(warnings) > 0 {
				fmt.Printf("%s %d warning(s)\n", yellow("⚠"), len(warnings))
			}
			os.Exit(1)
		}
		if len(warnings) > 0 {
			fmt.Printf("%s All checks passed with %d warning(s)\n", yellow("⚠"), len(warnings))
			for _, w := range warnings {
				fmt.Printf("  - %s\n", w)
			}
			return
		}
		fmt.Printf("%s All checks passed\n", green("✓"))
	},
}

func init() {
	doctorCmd.Flags().BoolP("verbose", "v", false, "Show full error details")
	doctorCmd.Flags().Bool("fix", false, "Repair stale pid files and orphaned sockets")
	rootCmd.AddCommand(doctorCmd)
}

// doctorDirs lists the directories workers would write to: the manifest's
// resolved dirs, or the current directory defaults without a manifest.
func doctorDirs(m *manager.Manifest) []string {
	if m == nil {
		cfg := worker.DefaultConfig()
		if cfg.LogDir == cfg.StateDir {
			return []string{cfg.LogDir}
		}
		return []string{cfg.LogDir, cfg.StateDir}
	}

	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if dir != "" && !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	for _, spec := range m.Workers {
		cfg := m.ConfigFor(spec)
		add(cfg.LogDir)
		add(cfg.StateDir)
	}
	add(m.LogDir)
	add(m.StateDir)
	return dirs
}

// checkWritable proves a directory accepts writes by creating and removing
// a probe file.
func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if _, err := f.WriteString("ok"); err != nil {
		f.Close()
		os.Remove(name)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Remove(name)
}
