package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"foreman/internal/worker"
	"foreman/pkg/models"
)

// DefaultMaxRetries is the retry budget applied when the host does not
// configure one.
const DefaultMaxRetries = 3

// EngineConfig contains configuration options for the Engine.
type EngineConfig struct {
	// Planner is the planning oracle. Required.
	Planner PlanOracle
	// Delegation is the delegation oracle. Required.
	Delegation DelegationOracle
	// Progress is the progress oracle the monitor polls. Required.
	Progress ProgressOracle
	// Registry is the worker registry. Required.
	Registry *worker.Registry
	// Strategy is the execution strategy. Empty defaults to parallel.
	Strategy models.ExecutionStrategy
	// MaxRetries is the retry budget for the failure path. Zero means
	// no recovery rounds; negative is invalid.
	MaxRetries int
	// PollInterval is the pause between monitoring re-entries while
	// work is outstanding. Zero means no pause.
	PollInterval time.Duration
	// CapabilityFilter is forwarded to every delegation oracle call.
	CapabilityFilter []string
	// Tasks, when non-empty, bypasses the planning oracle: the run
	// starts from these tasks instead of planning the goal.
	Tasks []*models.Task
}

// phaseHandler executes one phase against a state snapshot and returns
// the delta to merge.
type phaseHandler func(ctx context.Context, snap *RunState) *StateDelta

// Engine is the orchestration controller: a single-threaded cooperative
// state machine that drives a run from planning to a terminal phase.
// Each phase handler receives an immutable snapshot of the run state
// and returns a delta that is merged before the next handler runs.
type Engine struct {
	planner    *Planner
	delegator  *Delegator
	dispatcher *Dispatcher
	monitor    *Monitor
	recovery   *RecoveryController
	registry   *worker.Registry

	strategy     models.ExecutionStrategy
	maxRetries   int
	pollInterval time.Duration
	presetTasks  []*models.Task

	handlers map[Phase]phaseHandler
	events   chan Event
}

// NewEngine creates an Engine from the given configuration. Invalid
// configuration is the fatal controller failure class: it is the only
// error surface of the package.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Planner == nil {
		return nil, fmt.Errorf("engine config: planning oracle is required")
	}
	if cfg.Delegation == nil {
		return nil, fmt.Errorf("engine config: delegation oracle is required")
	}
	if cfg.Progress == nil {
		return nil, fmt.Errorf("engine config: progress oracle is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("engine config: worker registry is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("engine config: max retries must not be negative, got %d", cfg.MaxRetries)
	}

	strategy := cfg.Strategy
	if strategy == "" {
		strategy = models.StrategyParallel
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("engine config: invalid execution strategy %q", strategy)
	}

	delegator := NewDelegator(cfg.Delegation, cfg.Registry, cfg.CapabilityFilter)

	e := &Engine{
		planner:      NewPlanner(cfg.Planner),
		delegator:    delegator,
		dispatcher:   NewDispatcher(cfg.Registry),
		monitor:      NewMonitor(cfg.Progress),
		recovery:     NewRecoveryController(delegator),
		registry:     cfg.Registry,
		strategy:     strategy,
		maxRetries:   cfg.MaxRetries,
		pollInterval: cfg.PollInterval,
		presetTasks:  cfg.Tasks,
		events:       make(chan Event, 100),
	}
	e.handlers = map[Phase]phaseHandler{
		PhasePlanning:      e.handlePlanning,
		PhaseDelegation:    e.handleDelegation,
		PhaseExecution:     e.handleExecution,
		PhaseMonitoring:    e.handleMonitoring,
		PhaseHandleFailure: e.handleFailure,
	}
	return e, nil
}

// Submit runs a goal to completion and returns the final report. Every
// failure except a broken controller is captured into the run's error
// log and reflected in the result rather than returned.
func (e *Engine) Submit(ctx context.Context, goal string, runContext map[string]any) (models.ExecutionResult, error) {
	state := NewRunState(e.strategy, e.maxRetries)
	state.Goal = goal
	state.Context = runContext

	e.emitEvent(Event{Type: EventRunStarted, Phase: state.Phase, Message: goal})

	for !state.Phase.Terminal() {
		if err := ctx.Err(); err != nil {
			state.Errors = append(state.Errors,
				newErrorRecord(CodeRunCanceled, state.Phase, fmt.Sprintf("run canceled: %v", err)))
			state.Phase = PhaseError
			break
		}

		handler, ok := e.handlers[state.Phase]
		if !ok {
			return models.ExecutionResult{}, fmt.Errorf("no handler for phase %q", state.Phase)
		}

		prev := state.Phase
		delta := handler(ctx, state.Snapshot())
		state.Apply(delta)

		if state.Phase != prev {
			e.emitEvent(Event{
				Type:    EventPhaseChanged,
				Phase:   state.Phase,
				Message: fmt.Sprintf("%s -> %s", prev, state.Phase),
			})
		} else if state.Phase == PhaseMonitoring && e.pollInterval > 0 {
			e.pause(ctx)
		}
	}

	e.finalize(state)
	result := Aggregate(state)

	e.emitEvent(Event{Type: EventRunDone, Phase: state.Phase, Message: result.Summary})
	return result, nil
}

// pause sleeps for the poll interval or until the context ends.
func (e *Engine) pause(ctx context.Context) {
	timer := time.NewTimer(e.pollInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// finalize stamps the terminal time and normalizes every task to a
// terminal status, so completed + failed == total holds for any
// terminal state. Tasks the run never resolved (never assigned, or
// still in flight when the run was abandoned) are frozen as failed.
func (e *Engine) finalize(state *RunState) {
	if state.EndTime.IsZero() {
		state.EndTime = time.Now()
	}

	for _, id := range state.Store.Order {
		status, tracked := state.Store.Status[id]
		if tracked && status.Terminal() {
			continue
		}

		reason := "run ended before the task completed"
		code := CodeExecutionFailure
		if !tracked {
			reason = "task was never assigned to a worker"
			code = CodeDelegationFailure
		}
		state.Store.Status[id] = models.TaskStatusFailed
		if _, reported := state.Store.Errors[id]; !reported {
			state.Store.Errors[id] = reason
		}
		state.Errors = append(state.Errors,
			newErrorRecord(code, state.Phase, fmt.Sprintf("task %s: %s", id, reason)))
	}
}

// handlePlanning turns the goal into the run's initial task set, or
// starts from the preset tasks when the host supplied them directly.
func (e *Engine) handlePlanning(ctx context.Context, snap *RunState) *StateDelta {
	var tasks []*models.Task
	fellBack := false

	if len(e.presetTasks) > 0 {
		tasks = sanitizeTasks(e.presetTasks)
		log.Printf("[engine] planning bypassed, starting from %d preset tasks", len(tasks))
	} else {
		tasks, fellBack = e.planner.Plan(ctx, snap.Goal, snap.Context)
	}

	delta := &StateDelta{
		Phase: PhaseDelegation,
		Tasks: tasks,
	}
	if fellBack {
		delta.Errors = append(delta.Errors,
			newErrorRecord(CodePlanningFailure, PhasePlanning,
				"planning oracle produced no usable tasks; synthesized a fallback task"))
	}

	e.emitEvent(Event{
		Type:    EventTasksPlanned,
		Phase:   PhasePlanning,
		Message: fmt.Sprintf("planned %d tasks", len(tasks)),
	})
	return delta
}

// handleDelegation runs the initial delegation round over all tasks.
func (e *Engine) handleDelegation(ctx context.Context, snap *RunState) *StateDelta {
	delta := e.delegator.Delegate(ctx, snap, snap.Store.List())
	delta.Phase = PhaseExecution

	for taskID, workerID := range delta.Assignments {
		e.emitEvent(Event{
			Type:     EventTaskAssigned,
			Phase:    PhaseDelegation,
			TaskID:   taskID,
			WorkerID: workerID,
		})
	}
	return delta
}

// handleExecution dispatches eligible tasks to their workers.
func (e *Engine) handleExecution(ctx context.Context, snap *RunState) *StateDelta {
	delta, handoffs := e.dispatcher.Dispatch(ctx, snap)
	for _, h := range handoffs {
		e.emitEvent(Event{
			Type:     EventTaskDispatched,
			Phase:    PhaseExecution,
			TaskID:   h.taskID,
			WorkerID: h.workerID,
		})
	}
	return delta
}

// handleMonitoring runs one poll-merge-decide cycle and emits task
// outcome events for statuses that changed in this cycle.
func (e *Engine) handleMonitoring(ctx context.Context, snap *RunState) *StateDelta {
	delta := e.monitor.Check(ctx, snap)

	for taskID, status := range delta.Status {
		if snap.Store.Status[taskID] == status {
			continue
		}
		switch status {
		case models.TaskStatusCompleted:
			e.emitEvent(Event{Type: EventTaskCompleted, Phase: PhaseMonitoring, TaskID: taskID})
		case models.TaskStatusFailed:
			e.emitEvent(Event{
				Type:    EventTaskFailed,
				Phase:   PhaseMonitoring,
				TaskID:  taskID,
				Message: delta.TaskErrors[taskID],
			})
		}
	}
	return delta
}

// handleFailure runs one recovery round.
func (e *Engine) handleFailure(ctx context.Context, snap *RunState) *StateDelta {
	delta := e.recovery.Handle(ctx, snap)
	if delta.Phase == PhaseExecution {
		e.emitEvent(Event{
			Type:    EventRetryRound,
			Phase:   PhaseHandleFailure,
			Message: fmt.Sprintf("retry round %d of %d", snap.RetryCount+1, snap.MaxRetries),
		})
	}
	return delta
}
