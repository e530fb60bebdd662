package orchestrator

import (
	"context"
	"log"
	"sort"

	"foreman/internal/worker"
	"foreman/pkg/models"
)

// Dispatcher moves eligible tasks from pending to in_progress and hands
// each off to its assigned worker. Handoff is fire-and-forget: dispatch
// returns once every eligible task has been handed off, and the monitor
// owns completion detection.
type Dispatcher struct {
	registry *worker.Registry
}

// NewDispatcher creates a Dispatcher over the given worker registry.
func NewDispatcher(registry *worker.Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// handoff records one task-to-worker dispatch for event emission.
type handoff struct {
	taskID   string
	workerID string
}

// Dispatch selects the tasks that are pending with an assignment,
// orders them by the run's execution strategy, and hands each to its
// worker. With zero eligible tasks the phase still advances to
// monitoring with an otherwise unchanged state.
func (d *Dispatcher) Dispatch(ctx context.Context, snap *RunState) (*StateDelta, []handoff) {
	delta := &StateDelta{
		Phase:       PhaseMonitoring,
		Status:      make(map[string]models.TaskStatus),
		Assignments: make(map[string]string),
	}

	eligible := d.eligible(snap)
	if len(eligible) == 0 {
		return delta, nil
	}
	orderForStrategy(eligible, snap.Strategy)

	var handoffs []handoff
	for _, task := range eligible {
		workerID := snap.Assignments[task.ID]
		w := d.registry.Get(workerID)
		if w == nil {
			// The assignment outlived the worker. Clear it so the task
			// counts as unassigned; a later delegation round can pick
			// it up again.
			log.Printf("[dispatcher] worker %s for task %s is gone, clearing assignment", workerID, task.ID)
			delta.Assignments[task.ID] = ""
			delta.Errors = append(delta.Errors,
				newErrorRecord(CodeExecutionFailure, PhaseExecution, "worker "+workerID+" not registered for task "+task.ID))
			continue
		}

		delta.Status[task.ID] = models.TaskStatusInProgress

		// Hand the worker its own copy; the store's record stays
		// single-writer through the reducer.
		t := *task
		w.Execute(ctx, &t)
		handoffs = append(handoffs, handoff{taskID: task.ID, workerID: workerID})
	}

	return delta, handoffs
}

// eligible returns the tasks whose status is pending and which have a
// worker assignment, in creation order.
func (d *Dispatcher) eligible(snap *RunState) []*models.Task {
	var tasks []*models.Task
	for _, task := range snap.Store.List() {
		if snap.Store.Status[task.ID] != models.TaskStatusPending {
			continue
		}
		if snap.Assignments[task.ID] == "" {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// orderForStrategy sorts tasks into handoff order. Sequential and
// parallel both run in ascending creation order (sequential hands off
// one at a time, parallel fans out the same batch); prioritized runs in
// descending priority with ties broken by ascending id.
func orderForStrategy(tasks []*models.Task, strategy models.ExecutionStrategy) {
	switch strategy {
	case models.StrategyPrioritized:
		sort.SliceStable(tasks, func(i, j int) bool {
			if tasks[i].Priority != tasks[j].Priority {
				return tasks[i].Priority > tasks[j].Priority
			}
			return tasks[i].ID < tasks[j].ID
		})
	default:
		sort.SliceStable(tasks, func(i, j int) bool {
			if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
				return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
			}
			return tasks[i].ID < tasks[j].ID
		})
	}
}
