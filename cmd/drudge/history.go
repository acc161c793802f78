package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/drudgelabs/drudge/internal/status"
	"github.com/drudgelabs/drudge/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history <worker-id>",
	Short: "Show a worker's run history",
	Long: `List recent runs of a worker from the run history database.

History is recorded when a worker runs with the database enabled (the
manifest's 'database: true' or run's --database flag).

Examples:
  drudge history billing
  drudge history billing -n 25
  drudge history probe --state-dir ./state`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		limit, _ := cmd.Flags().GetInt("limit")

		store := openHistoryStore(cmd, id)
		defer store.Close()

		runs, err := store.RecentRuns(context.Background(), id, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(runs) == 0 {
			fmt.Printf("%s\n", gray("No recorded runs for "+id))
			return
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("\nRecent runs of %s:\n\n", cyan(id))
		for _, run := range runs {
			icon := green("✓")
			duration := "still running"
			if run.EndedAt != nil {
				duration = status.FormatDuration(run.EndedAt.Sub(run.StartedAt))
				if !run.CleanShutdown {
					icon = red("✗")
				}
			} else {
				icon = cyan("●")
			}

			fmt.Printf("  %s %s  %s  %s  %d cycle(s), %d failure(s)\n",
				icon,
				run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				duration,
				run.RunID,
				run.CyclesCompleted,
				run.Failures)
			if run.LastError != "" {
				fmt.Printf("      last error: %s\n", red(run.LastError))
			}
		}
		fmt.Println()
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().String("db", "", "Database file (overrides --state-dir and the manifest)")
	historyCmd.Flags().String("state-dir", "", "State directory holding the database")
	rootCmd.AddCommand(historyCmd)
}

// openHistoryStore resolves the database path from --db, --state-dir, or
// the manifest, and refuses to invent an empty database for a read.
func openHistoryStore(cmd *cobra.Command, id string) *storage.Store {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		stateDir, _ := cmd.Flags().GetString("state-dir")
		if stateDir == "" {
			mgr := newManager()
			spec, err := mgr.Manifest().Spec(id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			stateDir = mgr.Manifest().ConfigFor(*spec).StateDir
		}
		dbPath = storage.DefaultPath(stateDir)
	}

	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: no run history database at %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "Record history by running workers with the database enabled\n")
		os.Exit(1)
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return store
}
