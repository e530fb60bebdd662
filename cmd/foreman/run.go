package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"foreman/internal/config"
	"foreman/internal/control"
	"foreman/internal/oracle"
	"foreman/internal/orchestrator"
	"foreman/internal/state"
	"foreman/internal/worker"
	"foreman/pkg/models"
)

var (
	runStrategy     string
	runMaxRetries   int
	runPollInterval time.Duration
	runMaxWallClock time.Duration
	runFilter       []string
	runOutput       string
	runContextPairs []string
	runQuiet        bool
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Plan a goal into tasks and run them to completion",
	Long: `Run submits a goal to the orchestration engine. The goal is planned
into tasks, tasks are delegated to workers, and execution is monitored
until every task settles or the retry budget runs out.

The run can be canceled from another terminal with 'foreman cancel'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runStrategy, "strategy", "", "execution strategy: sequential, parallel, or prioritized")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", -1, "retry budget for failed tasks (default from config)")
	runCmd.Flags().DurationVar(&runPollInterval, "poll-interval", 0, "pause between progress polls (default from config)")
	runCmd.Flags().DurationVar(&runMaxWallClock, "max-wall-clock", 0, "abort the run after this duration (default from config)")
	runCmd.Flags().StringSliceVar(&runFilter, "filter", nil, "restrict delegation to workers holding these capabilities")
	runCmd.Flags().StringVar(&runOutput, "output", "text", "output format: text or yaml")
	runCmd.Flags().StringSliceVar(&runContextPairs, "context", nil, "key=value pairs passed to the planning oracle")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "suppress progress events, print only the final report")
}

func runRun(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	strategy := cfg.Defaults.Strategy
	if runStrategy != "" {
		strategy = runStrategy
	}
	parsedStrategy, err := models.ParseStrategy(strategy)
	if err != nil {
		return err
	}

	maxRetries := cfg.Defaults.MaxRetries
	if cmd.Flags().Changed("max-retries") {
		maxRetries = runMaxRetries
	}
	pollInterval := cfg.Monitor.PollInterval
	if cmd.Flags().Changed("poll-interval") {
		pollInterval = runPollInterval
	}
	maxWallClock := cfg.Monitor.MaxWallClock
	if cmd.Flags().Changed("max-wall-clock") {
		maxWallClock = runMaxWallClock
	}

	runContext, err := parseContextPairs(runContextPairs)
	if err != nil {
		return err
	}

	apiKey, err := config.GetAPIKey(cfg)
	if err != nil {
		return err
	}
	client, err := oracle.NewClient(oracle.ClientConfig{
		APIKey: apiKey,
		Model:  anthropic.Model(cfg.Anthropic.Model),
	})
	if err != nil {
		return fmt.Errorf("create anthropic client: %w", err)
	}

	board := worker.NewProgressBoard()
	registry := worker.NewRegistry()
	registerWorkers(registry, board, client, cfg.Workers)

	llm := oracle.NewOracle(client, registry)
	engine, err := orchestrator.NewEngine(orchestrator.EngineConfig{
		Planner:          llm,
		Delegation:       llm,
		Progress:         board,
		Registry:         registry,
		Strategy:         parsedStrategy,
		MaxRetries:       maxRetries,
		PollInterval:     pollInterval,
		CapabilityFilter: runFilter,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if maxWallClock > 0 {
		ctx, cancel = context.WithTimeout(ctx, maxWallClock)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	// Out-of-band cancellation via .foreman/signals/cancel.
	watcher, err := control.NewWatcher(filepath.Join(cwd, ".foreman"))
	if err == nil {
		watcher.Clear()
		stop := watcher.Bind(cancel, 250*time.Millisecond)
		defer stop()
		defer watcher.Close()
	}

	done := make(chan struct{})
	if !runQuiet {
		go printEvents(engine.Events(), done)
	}

	db, run, dbErr := startRunRecord(cfg, cwd, goal, parsedStrategy)
	if dbErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: run will not be persisted: %v\n", dbErr)
	}
	if db != nil {
		defer db.Close()
	}

	result, err := engine.Submit(ctx, goal, runContext)
	close(done)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if db != nil {
		if err := finishRunRecord(db, run, result); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: persist run: %v\n", err)
		}
	}

	if err := printResult(result, runOutput); err != nil {
		return err
	}

	if result.Status == models.RunFailed {
		os.Exit(1)
	}
	return nil
}

// parseContextPairs converts key=value flags into a context map.
func parseContextPairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	ctx := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid context pair %q, expected key=value", pair)
		}
		ctx[key] = value
	}
	return ctx, nil
}

// printEvents streams engine events to the terminal until done closes,
// then drains whatever is left in the channel.
func printEvents(events <-chan orchestrator.Event, done <-chan struct{}) {
	for {
		select {
		case ev := <-events:
			printEvent(ev)
		case <-done:
			for {
				select {
				case ev := <-events:
					printEvent(ev)
				default:
					return
				}
			}
		}
	}
}

func printEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventRunStarted:
		fmt.Printf("%s run started: %s\n", color.CyanString("▶"), ev.Message)
	case orchestrator.EventTasksPlanned:
		fmt.Printf("%s %s\n", color.CyanString("◆"), ev.Message)
	case orchestrator.EventTaskAssigned:
		fmt.Printf("%s task %s assigned to %s\n", color.WhiteString("·"), ev.TaskID, ev.WorkerID)
	case orchestrator.EventTaskDispatched:
		fmt.Printf("%s task %s dispatched to %s\n", color.WhiteString("·"), ev.TaskID, ev.WorkerID)
	case orchestrator.EventTaskCompleted:
		fmt.Printf("%s task %s completed\n", color.GreenString("✓"), ev.TaskID)
	case orchestrator.EventTaskFailed:
		fmt.Printf("%s task %s failed: %s\n", color.RedString("✗"), ev.TaskID, ev.Message)
	case orchestrator.EventRetryRound:
		fmt.Printf("%s %s\n", color.YellowString("⟳"), ev.Message)
	case orchestrator.EventRunDone:
		fmt.Printf("%s %s\n", color.CyanString("■"), ev.Message)
	}
}

// startRunRecord opens the run database and records the run as active.
func startRunRecord(cfg *config.Config, cwd, goal string, strategy models.ExecutionStrategy) (*state.DB, *state.Run, error) {
	dbPath := cfg.State.DB
	if dbPath == "" {
		dbPath = state.ProjectDBPath(cwd)
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, err
	}

	run := &state.Run{
		ID:        uuid.New().String()[:8],
		Goal:      goal,
		Strategy:  string(strategy),
		Status:    state.RunActive,
		StartedAt: time.Now(),
	}
	if err := db.CreateRun(run); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, run, nil
}

// finishRunRecord stores the terminal outcome and task rows.
func finishRunRecord(db *state.DB, run *state.Run, result models.ExecutionResult) error {
	run.Status = state.RunStatus(result.Status)
	run.Summary = result.Summary
	run.TotalTasks = result.Stats.Total
	run.CompletedTasks = result.Stats.Completed
	run.FailedTasks = result.Stats.Failed
	for _, e := range result.Errors {
		run.Errors = append(run.Errors, fmt.Sprintf("[%s] %s: %s", e.Code, e.Node, e.Message))
	}
	if err := db.FinishRun(run); err != nil {
		return err
	}

	tasks := make([]*state.RunTask, 0, len(result.Tasks))
	for _, t := range result.Tasks {
		key := t.Name
		if key == "" {
			key = t.ID
		}
		resultJSON := ""
		if payload, ok := result.Results[key]; ok {
			if data, err := json.Marshal(payload); err == nil {
				resultJSON = string(data)
			}
		}
		tasks = append(tasks, &state.RunTask{
			RunID:       run.ID,
			TaskID:      t.ID,
			Name:        t.Name,
			Description: t.Description,
			Priority:    t.Priority,
			Status:      string(t.Status),
			WorkerID:    t.Worker,
			Result:      resultJSON,
			Error:       t.Error,
			CreatedAt:   t.CreatedAt,
		})
	}
	return db.SaveRunTasks(run.ID, tasks)
}

// printResult renders the final report in the requested format.
func printResult(result models.ExecutionResult, format string) error {
	switch format {
	case "yaml":
		data, err := yaml.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Print(string(data))
		return nil
	case "text":
		printTextResult(result)
		return nil
	default:
		return fmt.Errorf("unknown output format %q, expected text or yaml", format)
	}
}

func printTextResult(result models.ExecutionResult) {
	var glyph string
	switch result.Status {
	case models.RunSuccess:
		glyph = color.GreenString("✓")
	case models.RunPartial:
		glyph = color.YellowString("⚠")
	default:
		glyph = color.RedString("✗")
	}

	fmt.Println()
	fmt.Printf("%s %s (%s)\n", glyph, result.Summary, result.Status)
	fmt.Printf("  Elapsed: %s\n", result.Elapsed.Round(time.Millisecond))
	fmt.Printf("  Success rate: %.0f%%\n", result.Stats.SuccessRate*100)

	if len(result.Tasks) > 0 {
		fmt.Println()
		fmt.Println("Tasks:")
		for _, t := range result.Tasks {
			line := fmt.Sprintf("  %s %s", t.ID, t.Name)
			if t.Worker != "" {
				line += fmt.Sprintf(" [%s]", t.Worker)
			}
			switch t.Status {
			case models.TaskStatusCompleted:
				fmt.Printf("%s %s\n", color.GreenString("✓"), line)
			case models.TaskStatusFailed:
				fmt.Printf("%s %s: %s\n", color.RedString("✗"), line, t.Error)
			default:
				fmt.Printf("%s %s (%s)\n", color.YellowString("·"), line, t.Status)
			}
		}
	}

	if len(result.Errors) > 0 {
		fmt.Println()
		fmt.Println("Errors:")
		for _, e := range result.Errors {
			fmt.Printf("  %s [%s] %s\n", color.RedString("✗"), e.Code, e.Message)
		}
	}
}
