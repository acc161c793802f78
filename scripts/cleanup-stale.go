// scripts/cleanup-stale.go - Manual stale pid file sweep tool
package main

import (
	"fmt"
	"os"

	"github.com/drudgelabs/drudge/internal/manager"
)

func main() {
	// Use the default fleet layout to find the state directory
	stateDir := "state"

	// Allow override via environment variable
	if dir := os.Getenv("DRUDGE_STATE_DIR"); dir != "" {
		stateDir = dir
	}

	fmt.Printf("Sweeping state directory: %s\n", stateDir)

	swept, err := manager.SweepStale(stateDir, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error during sweep: %v\n", err)
		os.Exit(1)
	}

	if len(swept) > 0 {
		fmt.Printf("✓ Swept %d stale worker(s) and removed their pid files\n", len(swept))
		for _, id := range swept {
			fmt.Printf("  - %s\n", id)
		}
	} else {
		fmt.Println("✓ No stale workers found")
	}
}
