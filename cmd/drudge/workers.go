package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/drudgelabs/drudge/internal/manager"
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List worker kinds and manifest assignments",
	Long: `Show the registered worker kinds and which manifest workers use them.

With --init, write a starter manifest covering the built-in kinds.

Examples:
  drudge workers
  drudge workers --init`,
	Run: func(cmd *cobra.Command, args []string) {
		initManifest, _ := cmd.Flags().GetBool("init")

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		if initManifest {
			if _, err := os.Stat(manifestPath); err == nil {
				fmt.Fprintf(os.Stderr, "Error: %s already exists; remove it first\n", manifestPath)
				os.Exit(1)
			}
			if err := manager.SaveDefaultManifest(manifestPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Wrote starter manifest to %s\n", green("✓"), manifestPath)
			fmt.Printf("  Start the fleet with 'drudge start --all'\n")
			return
		}

		registry, err := builtinRegistry()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s\n", cyan("Registered worker kinds:"))
		for _, kind := range registry.Kinds() {
			fmt.Printf("  %s %s\n", green("●"), kind)
		}
		fmt.Println()

		m, err := manager.LoadManifest(manifestPath)
		if err != nil {
			fmt.Printf("%s\n\n", gray("No manifest loaded ('drudge workers --init' creates one)"))
			return
		}

		fmt.Printf("%s\n", cyan("Manifest workers:"))
		for _, spec := range m.Workers {
			line := fmt.Sprintf("%s → %s", spec.ID, spec.Kind)
			if spec.WaitSeconds > 0 {
				line += fmt.Sprintf(", every %ds", spec.WaitSeconds)
			}
			if spec.MaxCycles > 0 {
				line += fmt.Sprintf(", %d cycles max", spec.MaxCycles)
			}
			fmt.Printf("  %s\n", line)
		}
		if len(m.Workers) == 0 {
			fmt.Printf("  %s\n", gray("none"))
		}
		if m.Database {
			fmt.Printf("  %s\n", yellow("history database enabled"))
		}
		fmt.Println()
	},
}

func init() {
	workersCmd.Flags().Bool("init", false, "Write a starter manifest and exit")
	rootCmd.AddCommand(workersCmd)
}
