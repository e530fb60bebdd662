package orchestrator

import (
	"context"
	"fmt"
	"log"

	"foreman/pkg/models"
)

// ProgressOracle is the external progress query the monitor polls.
type ProgressOracle interface {
	PollProgress(ctx context.Context) ([]models.ProgressUpdate, error)
}

// Monitor polls worker progress, merges the reported updates into the
// run state, and decides whether the run is complete, still in flight,
// or needs recovery. Each invocation is a fresh, idempotent progress
// check; the monitoring phase re-enters itself while work is
// outstanding, with no built-in iteration cap.
type Monitor struct {
	oracle ProgressOracle
}

// NewMonitor creates a Monitor backed by the given progress oracle.
func NewMonitor(oracle ProgressOracle) *Monitor {
	return &Monitor{oracle: oracle}
}

// Check runs one poll-merge-decide cycle.
func (m *Monitor) Check(ctx context.Context, snap *RunState) *StateDelta {
	delta := &StateDelta{
		Status:     make(map[string]models.TaskStatus),
		Results:    make(map[string]any),
		TaskErrors: make(map[string]string),
	}

	updates, err := m.oracle.PollProgress(ctx)
	if err != nil {
		// A failed poll is transient: stay in monitoring and try again.
		log.Printf("[monitor] progress query failed, retrying next cycle: %v", err)
		delta.Phase = PhaseMonitoring
		return delta
	}

	for _, update := range updates {
		task := snap.Store.Get(update.TaskID)
		if task == nil {
			log.Printf("[monitor] progress for unknown task %s, ignoring", update.TaskID)
			continue
		}

		current := snap.Store.Status[update.TaskID]
		switch update.Status {
		case models.TaskStatusCompleted:
			delta.Status[update.TaskID] = models.TaskStatusCompleted
			delta.Results[update.TaskID] = update.Result
		case models.TaskStatusFailed:
			delta.Status[update.TaskID] = models.TaskStatusFailed
			delta.TaskErrors[update.TaskID] = update.Error
			if current != models.TaskStatusFailed {
				delta.Errors = append(delta.Errors,
					newErrorRecord(CodeExecutionFailure, PhaseMonitoring,
						fmt.Sprintf("task %s (%s) failed: %s", update.TaskID, task.Name, update.Error)))
			}
		case models.TaskStatusInProgress:
			if current == models.TaskStatusPending || current == models.TaskStatusAssigned {
				delta.Status[update.TaskID] = models.TaskStatusInProgress
			}
		}
	}

	delta.Phase = m.decide(snap, delta)
	return delta
}

// decide applies the post-merge decision function: stay in monitoring
// while any task is in progress or pending with a worker owed to it;
// move to handle_failure if anything failed or a planned task has no
// live assignment, since that task is owed another delegation round;
// otherwise complete.
func (m *Monitor) decide(snap *RunState, delta *StateDelta) Phase {
	merged := make(map[string]models.TaskStatus, len(snap.Store.Status)+len(delta.Status))
	for id, st := range snap.Store.Status {
		merged[id] = st
	}
	for id, st := range delta.Status {
		merged[id] = st
	}

	needsRecovery := false
	for _, id := range snap.Store.Order {
		switch merged[id] {
		case models.TaskStatusInProgress:
			return PhaseMonitoring
		case models.TaskStatusPending, models.TaskStatusAssigned:
			if snap.Assignments[id] != "" {
				return PhaseMonitoring
			}
			// Assignment cleared; the task needs another delegation round.
			needsRecovery = true
		case models.TaskStatusFailed:
			needsRecovery = true
		case models.TaskStatusCompleted:
		default:
			// Planned but never assigned.
			needsRecovery = true
		}
	}
	if needsRecovery {
		return PhaseHandleFailure
	}
	return PhaseCompletion
}
