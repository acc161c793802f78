package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/drudgelabs/drudge/internal/config"
	"github.com/drudgelabs/drudge/internal/manager"
	"github.com/drudgelabs/drudge/internal/storage"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Cleanup and maintenance commands",
	Long:  `Commands for pruning old run history and sweeping leftover artifacts.`,
}

var cleanupRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Prune old runs from the history database",
	Long: `Delete finished runs older than the retention period.

The newest runs of each worker are always kept regardless of age, so a
worker that has been idle for months keeps its history. Open runs (no
recorded end) are never deleted.

Policy defaults come from DRUDGE_RETENTION_DAYS and DRUDGE_RETENTION_KEEP;
flags override.

Examples:
  drudge cleanup runs                      # apply the default policy
  drudge cleanup runs --retention-days 7   # tighter window
  drudge cleanup runs --dry-run            # preview only`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg, err := config.RetentionConfigFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("retention-days") {
			days, _ := cmd.Flags().GetInt("retention-days")
			cfg.MaxAge = time.Duration(days) * 24 * time.Hour
		}
		if cmd.Flags().Changed("keep") {
			cfg.KeepPerWorker, _ = cmd.Flags().GetInt("keep")
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		store := openCleanupStore(cmd)
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if dryRun {
			count, err := store.CountOldRuns(ctx, cfg.MaxAge, cfg.KeepPerWorker)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Would delete %d old run(s)\n", count)
			fmt.Printf("Run without --dry-run to perform cleanup\n")
			return
		}

		deleted, err := store.DeleteOldRuns(ctx, cfg.MaxAge, cfg.KeepPerWorker)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Deleted %d old run(s)\n", green("✓"), deleted)
	},
}

var cleanupStaleCmd = &cobra.Command{
	Use:   "stale",
	Short: "Sweep artifacts of crashed workers",
	Long: `Remove pid files and control sockets whose processes are gone.

A worker killed without a chance to clean up leaves its pid file behind.
This sweep removes those markers; status files are kept as the last known
report of each worker.

Examples:
  drudge cleanup stale                     # sweep the manifest's state dirs
  drudge cleanup stale --state-dir ./state # sweep one directory
  drudge cleanup stale --dry-run           # preview only`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		stateDir, _ := cmd.Flags().GetString("state-dir")

		dirs := []string{stateDir}
		if stateDir == "" {
			dirs = stateDirsFromManifest(loadManifest())
		}

		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		total := 0
		for _, dir := range dirs {
			stale, err := manager.SweepStale(dir, dryRun)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			for _, id := range stale {
				if dryRun {
					fmt.Printf("Would sweep %s (%s)\n", id, dir)
				} else {
					fmt.Printf("%s Swept %s (%s)\n", green("✓"), id, dir)
				}
			}
			total += len(stale)
		}

		if total == 0 {
			fmt.Printf("%s\n", gray("No stale artifacts found"))
		} else if dryRun {
			fmt.Printf("Run without --dry-run to perform cleanup\n")
		}
	},
}

func init() {
	cleanupRunsCmd.Flags().Int("retention-days", 30, "Delete finished runs older than this many days")
	cleanupRunsCmd.Flags().Int("keep", 20, "Always keep this many newest runs per worker")
	cleanupRunsCmd.Flags().Bool("dry-run", false, "Preview without deleting")
	cleanupRunsCmd.Flags().String("db", "", "Database file (overrides --state-dir and the manifest)")
	cleanupRunsCmd.Flags().String("state-dir", "", "State directory holding the database")

	cleanupStaleCmd.Flags().Bool("dry-run", false, "Preview without deleting")
	cleanupStaleCmd.Flags().String("state-dir", "", "Sweep this directory instead of the manifest's")

	cleanupCmd.AddCommand(cleanupRunsCmd)
	cleanupCmd.AddCommand(cleanupStaleCmd)
	rootCmd.AddCommand(cleanupCmd)
}

// stateDirsFromManifest collects the distinct state directories a manifest
// uses, manifest default plus per-worker overrides.
func stateDirsFromManifest(m *manager.Manifest) []string {
	seen := make(map[string]bool)
	var dirs []string

	add := func(dir string) {
		if dir != "" && !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, spec := range m.Workers {
		add(m.ConfigFor(spec).StateDir)
	}
	if len(dirs) == 0 {
		add(m.StateDir)
	}
	return dirs
}

// openCleanupStore resolves the history database like the history command,
// but without a worker id to consult the manifest with.
func openCleanupStore(cmd *cobra.Command) *storage.Store {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		stateDir, _ := cmd.Flags().GetString("state-dir")
		if stateDir == "" {
			stateDir = loadManifest().StateDir
			if stateDir == "" {
				fmt.Fprintf(os.Stderr, "Error: manifest has no statsDir; use --db or --state-dir\n")
				os.Exit(1)
			}
		}
		dbPath = storage.DefaultPath(stateDir)
	}

	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: no run history database at %s\n", dbPath)
		os.Exit(1)
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return store
}
