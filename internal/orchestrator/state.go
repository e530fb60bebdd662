package orchestrator

import (
	"log"
	"time"

	"foreman/pkg/models"
)

// RunState is the full state of one orchestration run. Exactly one phase
// handler executes at a time; each handler receives a snapshot and
// returns a StateDelta that is merged before the next handler runs, so
// there is no shared mutable state between handlers.
type RunState struct {
	// Phase is the active phase of the state machine.
	Phase Phase
	// Goal is the goal text the run was submitted with.
	Goal string
	// Context carries host-supplied context for the oracles.
	Context map[string]any
	// Store holds the canonical task records and per-task maps.
	Store *TaskStore
	// Assignments maps task id to worker id. A task absent from this map
	// is never dispatched.
	Assignments map[string]string
	// RetryCount is the number of recovery rounds consumed so far.
	RetryCount int
	// MaxRetries is the retry budget for the failure path.
	MaxRetries int
	// Strategy governs dispatch order and concurrency.
	Strategy models.ExecutionStrategy
	// StartTime is when the run was submitted.
	StartTime time.Time
	// EndTime is when the run reached a terminal phase.
	EndTime time.Time
	// Errors is the run's error log.
	Errors []models.ErrorRecord
}

// NewRunState creates the initial state for a run.
func NewRunState(strategy models.ExecutionStrategy, maxRetries int) *RunState {
	return &RunState{
		Phase:       PhasePlanning,
		Store:       NewTaskStore(),
		Assignments: make(map[string]string),
		MaxRetries:  maxRetries,
		Strategy:    strategy,
		StartTime:   time.Now(),
	}
}

// Snapshot returns a copy of the state safe for a handler to read while
// the driver merges the previous delta. Task records are shared and
// treated as read-only by handlers.
func (s *RunState) Snapshot() *RunState {
	snap := &RunState{
		Phase:       s.Phase,
		Goal:        s.Goal,
		Context:     s.Context,
		Store:       s.Store.Clone(),
		Assignments: make(map[string]string, len(s.Assignments)),
		RetryCount:  s.RetryCount,
		MaxRetries:  s.MaxRetries,
		Strategy:    s.Strategy,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		Errors:      append([]models.ErrorRecord(nil), s.Errors...),
	}
	for id, w := range s.Assignments {
		snap.Assignments[id] = w
	}
	return snap
}

// StateDelta is the change set a phase handler returns. Merging is
// reducer-style: map writes overwrite per key and accumulate keys,
// slices append, and counters add.
type StateDelta struct {
	// Phase is the next phase. Empty means no transition.
	Phase Phase
	// Tasks are new task records to add to the store.
	Tasks []*models.Task
	// Status holds per-task status writes.
	Status map[string]models.TaskStatus
	// Results holds per-task result writes.
	Results map[string]any
	// TaskErrors holds per-task error writes.
	TaskErrors map[string]string
	// Assignments holds task-to-worker assignment writes.
	Assignments map[string]string
	// RetryIncrement is added to the run's retry count.
	RetryIncrement int
	// EndTime, when set, records the terminal timestamp.
	EndTime time.Time
	// Errors are appended to the run's error log.
	Errors []models.ErrorRecord
}

// Apply merges a handler's delta into the run state. Status writes that
// would violate the task transition invariant are dropped with a log
// warning; a write equal to the current status is a silent no-op.
func (s *RunState) Apply(delta *StateDelta) {
	if delta == nil {
		return
	}

	for _, task := range delta.Tasks {
		s.Store.Add(task)
	}

	for id, status := range delta.Status {
		current, tracked := s.Store.Status[id]
		if tracked && current == status {
			continue
		}
		if tracked && !models.CanTransition(current, status) {
			log.Printf("[state] dropping invalid status transition for task %s: %s -> %s", id, current, status)
			continue
		}
		s.Store.Status[id] = status
	}

	for id, result := range delta.Results {
		s.Store.Results[id] = result
	}
	for id, msg := range delta.TaskErrors {
		s.Store.Errors[id] = msg
	}
	for id, workerID := range delta.Assignments {
		s.Assignments[id] = workerID
	}

	s.RetryCount += delta.RetryIncrement
	s.Errors = append(s.Errors, delta.Errors...)

	if !delta.EndTime.IsZero() {
		s.EndTime = delta.EndTime
	}

	if delta.Phase != "" && delta.Phase != s.Phase {
		if !CanTransition(s.Phase, delta.Phase) {
			log.Printf("[state] dropping invalid phase transition: %s -> %s", s.Phase, delta.Phase)
			return
		}
		s.Phase = delta.Phase
	}
}

// RetryableIDs returns, in creation order, the ids of tasks that need
// another delegation round: failed tasks, tasks the delegator never
// assigned, and pending tasks whose assignment was cleared.
func (s *RunState) RetryableIDs() []string {
	var ids []string
	for _, id := range s.Store.Order {
		status, tracked := s.Store.Status[id]
		switch {
		case !tracked:
			ids = append(ids, id)
		case status == models.TaskStatusFailed:
			ids = append(ids, id)
		case status == models.TaskStatusPending || status == models.TaskStatusAssigned:
			if s.Assignments[id] == "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Outstanding reports whether any task is still in progress, or pending
// with a worker assigned and therefore still owed a dispatch.
func (s *RunState) Outstanding() bool {
	for id, status := range s.Store.Status {
		switch status {
		case models.TaskStatusInProgress:
			return true
		case models.TaskStatusPending, models.TaskStatusAssigned:
			if s.Assignments[id] != "" {
				return true
			}
		}
	}
	return false
}
