package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/drudgelabs/drudge/internal/manager"
	"github.com/drudgelabs/drudge/internal/worker"
)

var startCmd = &cobra.Command{
	Use:   "start [worker-id...]",
	Short: "Start manifest workers as background processes",
	Long: `Spawn one or more manifest workers as detached background processes.

Each worker is started by re-invoking this binary's run command with the
settings resolved from the manifest. The command waits for every spawned
worker to write its pid file before reporting success.

Examples:
  drudge start billing          # start one worker
  drudge start --all            # start the whole fleet`,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")

		mgr := newManager()
		ctx := context.Background()

		targets, err := resolveTargets(mgr.Manifest(), args, all)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var results []manager.StartResult
		if all {
			results = mgr.StartAll(ctx)
		} else {
			for _, id := range targets {
				rec, err := mgr.StartWorker(ctx, id)
				results = append(results, manager.StartResult{ID: id, Rec: rec, Err: err})
			}
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		failed := 0
		for _, res := range results {
			switch {
			case errors.Is(res.Err, worker.ErrAlreadyRunning):
				fmt.Printf("%s %s already running (pid %d)\n", yellow("⚠"), res.ID, res.Rec.PID)
			case res.Err != nil:
				fmt.Printf("%s %s failed to start: %v\n", red("✗"), res.ID, res.Err)
				failed++
			default:
				fmt.Printf("%s Started %s (pid %d)\n", green("✓"), res.ID, res.Rec.PID)
			}
		}

		if failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	startCmd.Flags().Bool("all", false, "Start every worker in the manifest")
	rootCmd.AddCommand(startCmd)
}

// resolveTargets expands command arguments into manifest worker ids. With
// --all the manifest order is kept; otherwise each named id must exist.
func resolveTargets(m *manager.Manifest, args []string, all bool) ([]string, error) {
	if all {
		if len(args) > 0 {
			return nil, fmt.Errorf("--all does not take worker ids")
		}
		ids := make([]string, 0, len(m.Workers))
		for _, spec := range m.Workers {
			ids = append(ids, spec.ID)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("manifest has no workers")
		}
		return ids, nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("name at least one worker id, or use --all")
	}
	for _, id := range args {
		if _, err := m.Spec(id); err != nil {
			return nil, err
		}
	}
	return args, nil
}
