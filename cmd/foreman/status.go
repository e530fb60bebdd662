package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"foreman/internal/config"
	"foreman/internal/state"
)

var statusRunID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent runs",
	Long: `Display the most recent run and its tasks.

Shows:
  - The latest run's outcome and task breakdown
  - Recent runs with their status and age`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusRunID, "run", "", "show a specific run instead of the latest")
}

func runStatus(cmd *cobra.Command, args []string) error {
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
		fmt.Println("No runs recorded. Run 'foreman run <goal>' to start.")
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

	var run *state.Run
	if statusRunID != "" {
		run, err = db.GetRun(statusRunID)
	} else {
		run, err = db.LatestRun()
	}
	if err != nil {
		return err
	}
	if run == nil {
		fmt.Println("No runs recorded. Run 'foreman run <goal>' to start.")
		return nil
	}

	displayRun(run)

	tasks, err := db.GetRunTasks(run.ID)
	if err != nil {
		return fmt.Errorf("get run tasks: %w", err)
	}
	displayRunTasks(tasks)

	fmt.Println()
	return displayRecentRuns(db, run.ID)
}

func displayRun(r *state.Run) {
	fmt.Printf("Run: %s\n", r.ID)
	fmt.Printf("  Goal: %s\n", r.Goal)
	fmt.Printf("  Strategy: %s\n", r.Strategy)
	fmt.Printf("  Status: %s\n", colorRunStatus(r.Status))
	fmt.Printf("  Started: %s ago\n", formatDuration(time.Since(r.StartedAt)))
	if r.FinishedAt != nil {
		fmt.Printf("  Duration: %s\n", formatDuration(r.FinishedAt.Sub(r.StartedAt)))
	}
	if r.TotalTasks > 0 {
		fmt.Printf("  Tasks: %d completed, %d failed of %d\n", r.CompletedTasks, r.FailedTasks, r.TotalTasks)
	}
	if len(r.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(r.Errors))
	}
}

func displayRunTasks(tasks []*state.RunTask) {
	if len(tasks) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Tasks:")
	for _, t := range tasks {
		line := fmt.Sprintf("%s %s", t.TaskID, t.Name)
		if t.WorkerID != "" {
			line += fmt.Sprintf(" [%s]", t.WorkerID)
		}
		switch t.Status {
		case "completed":
			fmt.Printf("  %s %s\n", color.GreenString("✓"), line)
		case "failed":
			fmt.Printf("  %s %s: %s\n", color.RedString("✗"), line, t.Error)
		default:
			fmt.Printf("  %s %s (%s)\n", color.YellowString("·"), line, t.Status)
		}
	}
}

func displayRecentRuns(db *state.DB, currentID string) error {
	runs, err := db.ListRuns(6)
	if err != nil {
		return err
	}

	var recent []*state.Run
	for _, r := range runs {
		if r.ID != currentID {
			recent = append(recent, r)
		}
	}
	if len(recent) == 0 {
		return nil
	}

	fmt.Println("Recent Runs:")
	for _, r := range recent {
		fmt.Printf("  %s: %s \"%s\" (%s ago)\n",
			r.ID, colorRunStatus(r.Status), r.Goal, formatDuration(time.Since(r.StartedAt)))
	}
	return nil
}

// colorRunStatus renders a run status with its outcome color.
func colorRunStatus(s state.RunStatus) string {
	switch s {
	case state.RunSuccess:
		return color.GreenString(string(s))
	case state.RunPartial:
		return color.YellowString(string(s))
	case state.RunFailed, state.RunError:
		return color.RedString(string(s))
	default:
		return string(s)
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
