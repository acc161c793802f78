package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var tailCmd = &cobra.Command{
	Use:   "tail <worker-id>",
	Short: "Show a worker's log",
	Long: `Print the tail of a worker's log file, optionally following new output.

The log path is resolved from the manifest, or from --log-dir for workers
started with a bare 'drudge run'. Follow mode survives log rotation.

Examples:
  drudge tail billing
  drudge tail billing -f
  drudge tail probe --log-dir ./logs -n 50`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		follow, _ := cmd.Flags().GetBool("follow")
		lines, _ := cmd.Flags().GetInt("lines")
		logDir, _ := cmd.Flags().GetString("log-dir")

		if logDir == "" {
			mgr := newManager()
			spec, err := mgr.Manifest().Spec(id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			logDir = mgr.Manifest().ConfigFor(*spec).LogDir
		}
		path := filepath.Join(logDir, id+".log")

		if follow {
			runTailFollow(path, lines)
		} else {
			runTailOnce(path, lines)
		}
	},
}

func init() {
	tailCmd.Flags().BoolP("follow", "f", false, "Follow mode - print new log lines as they appear (Ctrl+C to stop)")
	tailCmd.Flags().IntP("lines", "n", 20, "Number of trailing lines to show")
	tailCmd.Flags().String("log-dir", "", "Log directory (overrides the manifest)")
	rootCmd.AddCommand(tailCmd)
}

func runTailOnce(path string, n int) {
	lines, err := readLastLines(path, n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
}

func runTailFollow(path string, n int) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("%s Following %s (Ctrl+C to stop)\n\n", cyan("→"), path)

	lines, err := readLastLines(path, n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, line := range lines {
		fmt.Println(line)
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	offset := info.Size()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			fmt.Println("\nStopped following")
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				// Rotation gap: the new file may not exist yet
				continue
			}
			if info.Size() < offset {
				// Rotated: start over from the new file
				offset = 0
			}
			if info.Size() == offset {
				continue
			}
			if err := printFrom(path, offset); err != nil {
				fmt.Fprintf(os.Stderr, "\nError reading log: %v\n", err)
				continue
			}
			offset = info.Size()
		}
	}
}

// readLastLines returns the last n lines of a file. Log files rotate at a
// bounded size, so reading the whole file is fine.
func readLastLines(path string, n int) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// printFrom copies file content from offset to stdout.
func printFrom(path string, offset int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err = io.Copy(os.Stdout, f)
	return err
}
