package orchestrator

import (
	"context"
	"fmt"
	"log"

	"foreman/pkg/models"
)

// RecoveryController re-delegates unresolved tasks within the run's
// retry budget. A task is unresolved when it failed, or when a
// delegation round left it without a worker. Once the budget is
// exhausted, unresolved tasks are frozen as terminal and the run
// proceeds to completion with partial results; no further delegation
// calls are made.
type RecoveryController struct {
	delegator *Delegator
}

// NewRecoveryController creates a RecoveryController that reuses the
// run's delegator for retry rounds.
func NewRecoveryController(delegator *Delegator) *RecoveryController {
	return &RecoveryController{delegator: delegator}
}

// Handle runs one recovery round over the snapshot's unresolved tasks.
func (r *RecoveryController) Handle(ctx context.Context, snap *RunState) *StateDelta {
	retryable := snap.RetryableIDs()
	if len(retryable) == 0 {
		// Nothing left to retry; complete directly.
		return &StateDelta{Phase: PhaseCompletion}
	}

	if snap.RetryCount >= snap.MaxRetries {
		log.Printf("[recovery] retry budget exhausted (%d/%d), freezing %d unresolved tasks",
			snap.RetryCount, snap.MaxRetries, len(retryable))
		return &StateDelta{
			Phase: PhaseCompletion,
			Errors: []models.ErrorRecord{
				newErrorRecord(CodeRecoveryExhausted, PhaseHandleFailure,
					fmt.Sprintf("retry budget of %d exhausted with %d tasks unresolved", snap.MaxRetries, len(retryable))),
			},
		}
	}

	// Re-delegate only the unresolved tasks, carrying any prior errors as
	// context for the oracle.
	tasks := make([]*models.Task, 0, len(retryable))
	for _, id := range retryable {
		t := *snap.Store.Get(id)
		t.Error = snap.Store.Errors[id]
		tasks = append(tasks, &t)
	}

	assignments, errs := r.delegator.Assignments(ctx, tasks, snap.Strategy)

	delta := &StateDelta{
		Phase:          PhaseExecution,
		Status:         make(map[string]models.TaskStatus),
		Assignments:    make(map[string]string),
		RetryIncrement: 1,
		Errors:         errs,
	}
	for id, workerID := range assignments {
		delta.Status[id] = models.TaskStatusPending
		delta.Assignments[id] = workerID
	}

	log.Printf("[recovery] round %d: re-delegated %d of %d unresolved tasks",
		snap.RetryCount+1, len(assignments), len(retryable))
	return delta
}
