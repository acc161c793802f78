package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/drudgelabs/drudge/internal/httpsink"
	"github.com/drudgelabs/drudge/internal/status"
	"github.com/drudgelabs/drudge/internal/storage"
	"github.com/drudgelabs/drudge/internal/worker"
)

var runCmd = &cobra.Command{
	Use:   "run <worker-kind>",
	Short: "Run a worker in the foreground",
	Long: `Run a single worker until stopped or until its cycle limit is reached.

The worker writes its artifacts ({id}.pid, {id}.stats, {id}.json, {id}.log)
under the state and log directories and keeps them fresh while it runs.
Stop it with Ctrl+C or 'drudge stop'.

Configuration starts from DRUDGE_* environment variables; flags override.

Examples:
  drudge run basic --id billing --wait 60s
  drudge run batch --id batcher --params '{"batchSize": 25}' --max-cycles 10
  drudge run http-probe --id api-check --param url=http://localhost:8080/health --wait 30s
  drudge run basic --id demo --database --status-url http://localhost:9000`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		kind := args[0]

		cfg, err := worker.ConfigFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		id, _ := cmd.Flags().GetString("id")
		if id == "" {
			id = kind
		}
		cfg.ID = id

		if cmd.Flags().Changed("log-dir") {
			cfg.LogDir, _ = cmd.Flags().GetString("log-dir")
		}
		if cmd.Flags().Changed("state-dir") {
			cfg.StateDir, _ = cmd.Flags().GetString("state-dir")
		}
		if cmd.Flags().Changed("wait") {
			cfg.Wait, _ = cmd.Flags().GetDuration("wait")
		}
		if cmd.Flags().Changed("max-cycles") {
			cfg.MaxCycles, _ = cmd.Flags().GetInt("max-cycles")
		}
		if cmd.Flags().Changed("status-interval") {
			cfg.StatusInterval, _ = cmd.Flags().GetDuration("status-interval")
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("console") {
			cfg.ConsoleLog, _ = cmd.Flags().GetBool("console")
		}

		paramsJSON, _ := cmd.Flags().GetString("params")
		if paramsJSON != "" {
			if err := json.Unmarshal([]byte(paramsJSON), &cfg.Params); err != nil {
				fmt.Fprintf(os.Stderr, "Error: invalid --params JSON: %v\n", err)
				os.Exit(1)
			}
		}
		if pairs, _ := cmd.Flags().GetStringArray("param"); len(pairs) > 0 {
			if cfg.Params == nil {
				cfg.Params = make(map[string]interface{})
			}
			if err := applyParamFlags(cfg.Params, pairs); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		registry, err := builtinRegistry()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		w, err := registry.Create(kind, cfg.ID, cfg.Params)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		var opts []worker.Option

		useControl, _ := cmd.Flags().GetBool("control")
		if useControl {
			opts = append(opts, worker.WithControlSocket())
		}

		useDB, _ := cmd.Flags().GetBool("database")
		if useDB {
			store, err := storage.Open(storage.DefaultPath(cfg.StateDir))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
				os.Exit(1)
			}
			defer store.Close()
			opts = append(opts, worker.WithStore(store))
		}

		statusURL, _ := cmd.Flags().GetString("status-url")
		if statusURL != "" {
			opts = append(opts, worker.WithSink("http", httpsink.New(statusURL)))
		}

		loop, err := worker.New(cfg, w, opts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		if err := loop.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start worker: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s Worker %s started (kind %s, run %s)\n", green("✓"), cyan(cfg.ID), kind, loop.RunID())
		fmt.Printf("  Cycle wait: %v\n", cfg.Wait)
		if cfg.MaxCycles > 0 {
			fmt.Printf("  Cycle limit: %d\n", cfg.MaxCycles)
		}
		fmt.Printf("  Artifacts: %s\n", cfg.StateDir)
		fmt.Printf("  Press Ctrl+C to stop\n\n")

		select {
		case <-sigCh:
			fmt.Println("\nShutting down worker...")
			cancel()
			// Fresh context: the run context is already cancelled
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 35*time.Second)
			defer shutdownCancel()
			if err := loop.Stop(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: error during shutdown: %v\n", err)
			}
		case <-loop.Done():
		}

		if err := loop.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: worker run failed: %v\n", err)
			os.Exit(1)
		}

		snap := loop.Tracker().Snapshot()
		fmt.Printf("%s Worker stopped after %d cycle(s), uptime %s\n",
			green("✓"), snap.CyclesCompleted, status.FormatDuration(time.Since(snap.StartedAt)))
	},
}

func init() {
	runCmd.Flags().String("id", "", "Worker id (defaults to the worker kind)")
	runCmd.Flags().String("log-dir", "", "Directory for the worker log file")
	runCmd.Flags().String("state-dir", "", "Directory for pid and status artifacts")
	runCmd.Flags().DurationP("wait", "w", 0, "Target interval between cycle starts")
	runCmd.Flags().IntP("max-cycles", "n", 0, "Stop after this many cycles (0 = run until stopped)")
	runCmd.Flags().Duration("status-interval", 0, "Minimum gap between status file writes")
	runCmd.Flags().String("params", "", "Worker parameters as JSON")
	runCmd.Flags().StringArray("param", nil, "Worker parameter as key=value (repeatable, overrides --params)")
	runCmd.Flags().Bool("database", false, "Mirror status and run history into SQLite in the state dir")
	runCmd.Flags().String("status-url", "", "Also POST status reports to this base URL")
	runCmd.Flags().Bool("control", true, "Serve live stats on a unix socket in the state dir")
	runCmd.Flags().String("log-level", "", "Log level: debug, info, warn, error")
	runCmd.Flags().Bool("console", false, "Also log to stdout")
	rootCmd.AddCommand(runCmd)
}

// applyParamFlags merges --param key=value pairs into params. Values are
// coerced to int, float, or bool when they parse as one, matching the
// types a YAML manifest produces.
func applyParamFlags(params map[string]interface{}, pairs []string) error {
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid --param %q (want key=value)", pair)
		}
		params[key] = coerceParam(raw)
	}
	return nil
}

func coerceParam(raw string) interface{} {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
