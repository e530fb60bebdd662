package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"foreman/internal/config"
	"foreman/internal/state"
)

var (
	cleanupOlderThan time.Duration
	cleanupDryRun    bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge old runs from the state database",
	Long: `Delete recorded runs older than the retention window, along with
their task rows.

Examples:
  foreman cleanup                    # purge runs older than 30 days
  foreman cleanup --older-than 168h  # purge runs older than a week
  foreman cleanup --dry-run          # show what would be purged`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 30*24*time.Hour, "purge runs started longer ago than this")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "show what would be purged without deleting")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := cfg.State.DB
	if dbPath == "" {
		dbPath = state.ProjectDBPath(cwd)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No runs recorded. Nothing to purge.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if cleanupDryRun {
		runs, err := db.ListRuns(0)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		cutoff := time.Now().Add(-cleanupOlderThan)
		count := 0
		for _, r := range runs {
			if r.StartedAt.Before(cutoff) {
				count++
			}
		}
		fmt.Printf("Would purge %d run(s) older than %s.\n", count, cleanupOlderThan)
		return nil
	}

	purged, err := db.PurgeOldRuns(cleanupOlderThan)
	if err != nil {
		return fmt.Errorf("purge runs: %w", err)
	}
	if purged == 0 {
		fmt.Printf("No runs older than %s found.\n", cleanupOlderThan)
		return nil
	}
	fmt.Printf("Purged %d run(s) older than %s.\n", purged, cleanupOlderThan)
	return nil
}
