package orchestrator

import "time"

// EventType represents the type of engine event.
type EventType string

const (
	// EventRunStarted indicates a run has been submitted.
	EventRunStarted EventType = "run_started"
	// EventTasksPlanned indicates planning produced the run's task set.
	EventTasksPlanned EventType = "tasks_planned"
	// EventTaskAssigned indicates a task received a worker assignment.
	EventTaskAssigned EventType = "task_assigned"
	// EventTaskDispatched indicates a task was handed to its worker.
	EventTaskDispatched EventType = "task_dispatched"
	// EventTaskCompleted indicates a worker reported task success.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed indicates a worker reported task failure.
	EventTaskFailed EventType = "task_failed"
	// EventRetryRound indicates a recovery round re-delegated failed tasks.
	EventRetryRound EventType = "retry_round"
	// EventPhaseChanged indicates the state machine moved to a new phase.
	EventPhaseChanged EventType = "phase_changed"
	// EventRunDone indicates the run reached a terminal phase.
	EventRunDone EventType = "run_done"
)

// Event is emitted by the engine so hosts can observe run progress.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// Phase is the phase active when the event was emitted.
	Phase Phase
	// TaskID is the id of the related task, if applicable.
	TaskID string
	// WorkerID is the id of the related worker, if applicable.
	WorkerID string
	// Message provides additional context about the event.
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// emitEvent sends an event to the events channel without blocking.
func (e *Engine) emitEvent(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case e.events <- event:
	default:
		// Channel full, drop event to avoid blocking the driver loop.
	}
}

// Events returns a read-only channel of engine events.
func (e *Engine) Events() <-chan Event {
	return e.events
}
