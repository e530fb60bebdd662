package orchestrator

import (
	"context"
	"testing"

	"foreman/pkg/models"
)

// failedState builds a run state in handle_failure with t1 failed and
// t2 completed.
func failedState(t *testing.T, maxRetries int) *RunState {
	t.Helper()
	s := NewRunState(models.StrategyParallel, maxRetries)
	s.Apply(&StateDelta{Tasks: []*models.Task{newTestTask("t1", "one"), newTestTask("t2", "two")}})
	s.Apply(&StateDelta{
		Status:      map[string]models.TaskStatus{"t1": models.TaskStatusPending, "t2": models.TaskStatusPending},
		Assignments: map[string]string{"t1": "w1", "t2": "w1"},
	})
	s.Apply(&StateDelta{Status: map[string]models.TaskStatus{
		"t1": models.TaskStatusInProgress,
		"t2": models.TaskStatusInProgress,
	}})
	s.Apply(&StateDelta{
		Status:     map[string]models.TaskStatus{"t1": models.TaskStatusFailed, "t2": models.TaskStatusCompleted},
		TaskErrors: map[string]string{"t1": "disk full"},
	})
	s.Phase = PhaseHandleFailure
	return s
}

func recoveryWithOracle(fn delegationOracleFunc) *RecoveryController {
	registry := newTestRegistry(&stubWorker{id: "w1"})
	return NewRecoveryController(NewDelegator(fn, registry, nil))
}

func TestHandleNoFailuresCompletes(t *testing.T) {
	r := recoveryWithOracle(func(_ context.Context, _ []*models.Task, _ models.ExecutionStrategy, _ []string) (any, error) {
		t.Fatal("delegation oracle must not be called with nothing failed")
		return nil, nil
	})

	s := NewRunState(models.StrategyParallel, 3)
	s.Phase = PhaseHandleFailure
	delta := r.Handle(context.Background(), s.Snapshot())
	if delta.Phase != PhaseCompletion {
		t.Errorf("phase = %q, want completion", delta.Phase)
	}
}

func TestHandleReDelegatesWithinBudget(t *testing.T) {
	var sawError string
	r := recoveryWithOracle(func(_ context.Context, tasks []*models.Task, _ models.ExecutionStrategy, _ []string) (any, error) {
		if len(tasks) != 1 || tasks[0].ID != "t1" {
			t.Fatalf("oracle saw %d tasks, want only the failed one", len(tasks))
		}
		sawError = tasks[0].Error
		return map[string]string{"t1": "w1"}, nil
	})

	s := failedState(t, 3)
	delta := r.Handle(context.Background(), s.Snapshot())

	if delta.Phase != PhaseExecution {
		t.Fatalf("phase = %q, want execution", delta.Phase)
	}
	if delta.Status["t1"] != models.TaskStatusPending {
		t.Errorf("t1 status = %q, want pending reset", delta.Status["t1"])
	}
	if delta.RetryIncrement != 1 {
		t.Errorf("retry increment = %d, want 1", delta.RetryIncrement)
	}
	// The prior failure travels with the task so the oracle can route
	// around it.
	if sawError != "disk full" {
		t.Errorf("oracle saw error %q, want the recorded failure", sawError)
	}

	// The reset must survive Apply: failed -> pending is the recovery edge.
	s.Apply(delta)
	if s.Store.Status["t1"] != models.TaskStatusPending {
		t.Errorf("after apply, t1 = %q, want pending", s.Store.Status["t1"])
	}
	if s.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", s.RetryCount)
	}
}

func TestHandleReDelegatesUnassignedTask(t *testing.T) {
	var seen []string
	r := recoveryWithOracle(func(_ context.Context, tasks []*models.Task, _ models.ExecutionStrategy, _ []string) (any, error) {
		for _, task := range tasks {
			seen = append(seen, task.ID)
		}
		return map[string]string{"t2": "w1"}, nil
	})

	// t1 ran to completion; t2 never got a worker in the first round.
	s := NewRunState(models.StrategyParallel, 3)
	s.Apply(&StateDelta{Tasks: []*models.Task{newTestTask("t1", "one"), newTestTask("t2", "two")}})
	s.Apply(&StateDelta{
		Status:      map[string]models.TaskStatus{"t1": models.TaskStatusPending},
		Assignments: map[string]string{"t1": "w1"},
	})
	s.Apply(&StateDelta{Status: map[string]models.TaskStatus{"t1": models.TaskStatusInProgress}})
	s.Apply(&StateDelta{Status: map[string]models.TaskStatus{"t1": models.TaskStatusCompleted}})
	s.Phase = PhaseHandleFailure

	delta := r.Handle(context.Background(), s.Snapshot())
	if delta.Phase != PhaseExecution {
		t.Fatalf("phase = %q, want execution", delta.Phase)
	}
	if len(seen) != 1 || seen[0] != "t2" {
		t.Errorf("oracle saw %v, want only the unassigned task", seen)
	}
	if delta.Status["t2"] != models.TaskStatusPending {
		t.Errorf("t2 status = %q, want pending", delta.Status["t2"])
	}
	if delta.Assignments["t2"] != "w1" {
		t.Errorf("t2 assignment = %q, want w1", delta.Assignments["t2"])
	}
	if delta.RetryIncrement != 1 {
		t.Errorf("retry increment = %d, want 1", delta.RetryIncrement)
	}
}

func TestHandleExhaustedBudgetFreezesFailures(t *testing.T) {
	r := recoveryWithOracle(func(_ context.Context, _ []*models.Task, _ models.ExecutionStrategy, _ []string) (any, error) {
		t.Fatal("delegation oracle must not be called after the budget is spent")
		return nil, nil
	})

	s := failedState(t, 2)
	s.RetryCount = 2
	delta := r.Handle(context.Background(), s.Snapshot())

	if delta.Phase != PhaseCompletion {
		t.Fatalf("phase = %q, want completion", delta.Phase)
	}
	if len(delta.Errors) != 1 || delta.Errors[0].Code != CodeRecoveryExhausted {
		t.Errorf("errors = %v, want one RECOVERY_EXHAUSTED", delta.Errors)
	}
	if len(delta.Status) != 0 {
		t.Errorf("status writes = %v, want failed tasks frozen", delta.Status)
	}
}

func TestHandleZeroBudgetNeverRetries(t *testing.T) {
	r := recoveryWithOracle(func(_ context.Context, _ []*models.Task, _ models.ExecutionStrategy, _ []string) (any, error) {
		t.Fatal("delegation oracle must not be called with a zero budget")
		return nil, nil
	})

	s := failedState(t, 0)
	delta := r.Handle(context.Background(), s.Snapshot())
	if delta.Phase != PhaseCompletion {
		t.Errorf("phase = %q, want completion with zero budget", delta.Phase)
	}
}

func TestHandleOracleFailureStillBurnsRetry(t *testing.T) {
	r := recoveryWithOracle(func(_ context.Context, _ []*models.Task, _ models.ExecutionStrategy, _ []string) (any, error) {
		return nil, context.DeadlineExceeded
	})

	s := failedState(t, 3)
	delta := r.Handle(context.Background(), s.Snapshot())
	if delta.Phase != PhaseExecution {
		t.Fatalf("phase = %q, want execution", delta.Phase)
	}
	if delta.RetryIncrement != 1 {
		t.Errorf("retry increment = %d, want 1 even when the oracle fails", delta.RetryIncrement)
	}
	if len(delta.Status) != 0 {
		t.Errorf("status writes = %v, want none without assignments", delta.Status)
	}
	if len(delta.Errors) != 1 || delta.Errors[0].Code != CodeDelegationFailure {
		t.Errorf("errors = %v, want one DELEGATION_FAILURE", delta.Errors)
	}
}
