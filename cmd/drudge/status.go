package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/drudgelabs/drudge/internal/control"
	"github.com/drudgelabs/drudge/internal/manager"
	"github.com/drudgelabs/drudge/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status [worker-id]",
	Short: "Show worker status",
	Long: `Display worker status from the artifacts each worker leaves on disk.

Without arguments, shows every worker in the manifest. Liveness comes from
the pid file: a pid file whose process is gone marks the worker stale.

Examples:
  drudge status                     # the whole fleet
  drudge status billing             # one worker
  drudge status billing --live      # ask the running process directly
  drudge status --state-dir ./state # read a directory, no manifest
  drudge status --json              # machine-readable output`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jsonOut, _ := cmd.Flags().GetBool("json")
		live, _ := cmd.Flags().GetBool("live")
		stateDir, _ := cmd.Flags().GetString("state-dir")

		if live {
			if len(args) != 1 {
				fmt.Fprintf(os.Stderr, "Error: --live needs exactly one worker id\n")
				os.Exit(1)
			}
			runLiveStatus(stateDir, args[0])
			return
		}

		var results []manager.RuntimeStatus
		var err error

		if stateDir != "" {
			results, err = directStatuses(stateDir, args)
		} else {
			mgr := newManager()
			if len(args) == 1 {
				var rs manager.RuntimeStatus
				rs, err = mgr.Status(args[0])
				results = []manager.RuntimeStatus{rs}
			} else {
				results, err = mgr.StatusAll(context.Background())
			}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOut {
			data, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
			return
		}

		renderStatuses(results)
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "Output as JSON")
	statusCmd.Flags().Bool("live", false, "Query the running worker over its control socket")
	statusCmd.Flags().String("state-dir", "", "Read artifacts from this directory instead of the manifest")
	rootCmd.AddCommand(statusCmd)
}

// directStatuses reads a state directory without a manifest: every worker
// that left a status file there, or just the named ones.
func directStatuses(stateDir string, args []string) ([]manager.RuntimeStatus, error) {
	ids := args
	if len(ids) == 0 {
		var err error
		ids, err = status.ListIDs(stateDir)
		if err != nil {
			return nil, err
		}
	}

	specs := make([]manager.WorkerSpec, 0, len(ids))
	for _, id := range ids {
		specs = append(specs, manager.WorkerSpec{ID: id})
	}
	mgr, err := manager.New(&manager.Manifest{StateDir: stateDir, Workers: specs})
	if err != nil {
		return nil, err
	}
	return mgr.StatusAll(context.Background())
}

// runLiveStatus asks the worker process itself over the control socket.
func runLiveStatus(stateDir, id string) {
	if stateDir == "" {
		mgr := newManager()
		spec, err := mgr.Manifest().Spec(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		stateDir = mgr.Manifest().ConfigFor(*spec).StateDir
	}

	client := control.NewClient(control.SocketPath(stateDir, id))
	resp, err := client.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "Error: worker refused: %s\n", resp.Error)
		os.Exit(1)
	}

	data, err := json.MarshalIndent(resp.Data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

func renderStatuses(results []manager.RuntimeStatus) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Drudge Workers ==="))

	if len(results) == 0 {
		fmt.Printf("  %s\n\n", gray("No workers found"))
		return
	}

	running, stale, stopped := summarize(results)

	for _, rs := range results {
		icon, paint := "○", gray
		switch {
		case rs.Stale:
			icon, paint = "⚠", yellow
		case rs.Running:
			icon, paint = "●", green
		}

		stateText := "no status"
		if rs.Status != nil {
			stateText = rs.Status.State
		}
		if rs.Stale {
			stateText = "stale"
		}

		name := rs.Spec.ID
		if rs.Spec.Kind != "" {
			name = fmt.Sprintf("%s (%s)", rs.Spec.ID, rs.Spec.Kind)
		}
		fmt.Printf("  %s %s %s\n", paint(icon), name, paint(stateText))

		if st := rs.Status; st != nil {
			fmt.Printf("    Run:     %s\n", st.RunID)
			fmt.Printf("    Host:    PID %d\n", st.PID)
			fmt.Printf("    Started: %s\n", st.StartedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Printf("    Updated: %s ago\n", status.FormatDuration(time.Since(st.UpdatedAt)))
			fmt.Printf("    Cycles:  %d\n", st.CyclesCompleted)
			if st.LastError != "" {
				fmt.Printf("    Last error: %s\n", red(st.LastError))
			}
			for _, line := range operationLines(st.Operations) {
				fmt.Printf("    %s\n", line)
			}
		} else if rec := rs.Pid; rec != nil {
			fmt.Printf("    Host:    PID %d\n", rec.PID)
			fmt.Printf("    Started: %s\n", rec.StartedAt.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}

	fmt.Printf("  Total: %s running", green(fmt.Sprintf("%d", running)))
	if stale > 0 {
		fmt.Printf(", %s stale", yellow(fmt.Sprintf("%d", stale)))
	}
	fmt.Printf(", %s stopped\n\n", gray(fmt.Sprintf("%d", stopped)))
}

// summarize counts workers by liveness bucket.
func summarize(results []manager.RuntimeStatus) (running, stale, stopped int) {
	for _, rs := range results {
		switch {
		case rs.Stale:
			stale++
		case rs.Running:
			running++
		default:
			stopped++
		}
	}
	return running, stale, stopped
}

// operationLines renders one line per tracked operation, sorted by name.
func operationLines(ops map[string]status.OperationStatus) []string {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, opSummary(name, ops[name]))
	}
	return lines
}

func opSummary(name string, op status.OperationStatus) string {
	ok := op.Count - op.Failures
	avg := time.Duration(op.AvgDurationSeconds * float64(time.Second)).Round(time.Millisecond)
	return fmt.Sprintf("%s: %d ok, %d failed, avg %s, %.2f/s", name, ok, op.Failures, avg, op.RateOpsPerSec)
}
