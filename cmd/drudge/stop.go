package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/drudgelabs/drudge/internal/manager"
	"github.com/drudgelabs/drudge/internal/worker"
)

var stopCmd = &cobra.Command{
	Use:   "stop [worker-id...]",
	Short: "Stop running workers",
	Long: `Stop workers by signalling the process each pid file names.

Workers get SIGINT and a grace period to finish the current cycle and write
their final status. A worker that does not exit within --timeout is killed.
Stale artifacts from crashed workers are cleaned up along the way.

Examples:
  drudge stop billing               # graceful stop
  drudge stop --all                 # stop the whole fleet
  drudge stop billing --force       # SIGKILL immediately
  drudge stop probe --state-dir ./state   # no manifest needed`,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		force, _ := cmd.Flags().GetBool("force")
		stateDir, _ := cmd.Flags().GetString("state-dir")

		// Direct mode signals pid files in a directory without a manifest,
		// for workers started with a bare 'drudge run'.
		if stateDir != "" {
			if len(args) == 0 || all {
				fmt.Fprintf(os.Stderr, "Error: --state-dir mode needs explicit worker ids\n")
				os.Exit(1)
			}
			failed := 0
			for _, id := range args {
				stale, err := manager.StopByID(stateDir, id, timeout, force)
				if !printStopResult(id, stale, err) {
					failed++
				}
			}
			if failed > 0 {
				os.Exit(1)
			}
			return
		}

		mgr := newManager()
		targets, err := resolveTargets(mgr.Manifest(), args, all)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		failed := 0
		if all {
			results, err := mgr.StopAll(context.Background(), timeout, force)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			for _, res := range results {
				if !printStopResult(res.ID, res.Stale, res.Err) {
					failed++
				}
			}
		} else {
			for _, id := range targets {
				stale, err := mgr.StopWorker(id, timeout, force)
				if !printStopResult(id, stale, err) {
					failed++
				}
			}
		}
		if failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	stopCmd.Flags().Bool("all", false, "Stop every worker in the manifest")
	stopCmd.Flags().DurationP("timeout", "t", 30*time.Second, "Grace period before escalating to SIGKILL")
	stopCmd.Flags().Bool("force", false, "Send SIGKILL immediately")
	stopCmd.Flags().String("state-dir", "", "Stop by pid file in this directory instead of the manifest")
	rootCmd.AddCommand(stopCmd)
}

// printStopResult reports one stop outcome. Returns false only for real
// failures; a worker that was not running does not fail the command.
func printStopResult(id string, stale bool, err error) bool {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	switch {
	case errors.Is(err, worker.ErrNotRunning):
		fmt.Printf("%s %s not running\n", gray("○"), id)
		return true
	case err != nil:
		fmt.Printf("%s %s: %v\n", red("✗"), id, err)
		return false
	case stale:
		fmt.Printf("%s %s was not running; cleaned up stale artifacts\n", yellow("⚠"), id)
		return true
	default:
		fmt.Printf("%s Stopped %s\n", green("✓"), id)
		return true
	}
}
