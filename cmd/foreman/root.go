package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Task orchestration engine",
	Long: `Foreman plans a goal into tasks, delegates them to workers, and
monitors execution until the run completes or the retry budget runs out.

Core capabilities:
- Breaks a goal into independent tasks via a planning oracle
- Matches tasks to registered workers by capability
- Dispatches work and polls progress until all tasks settle
- Re-delegates failed tasks within a bounded retry budget
- Aggregates results into a single run report`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)
}
