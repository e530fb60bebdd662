package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusAssigned indicates the task has a worker but has not been dispatched.
	TaskStatusAssigned TaskStatus = "assigned"
	// TaskStatusInProgress indicates the task has been handed to its worker.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusAssigned, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a terminal state for a task.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition reports whether a task status transition is permitted.
// The only path back from failed is to pending, which the recovery
// controller takes while the retry budget lasts.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusPending:
		return to == TaskStatusAssigned || to == TaskStatusInProgress
	case TaskStatusAssigned:
		return to == TaskStatusInProgress
	case TaskStatusInProgress:
		return to == TaskStatusCompleted || to == TaskStatusFailed
	case TaskStatusFailed:
		return to == TaskStatusPending
	default:
		return false
	}
}

// Task represents a unit of work delegated to a worker.
type Task struct {
	// ID is the unique identifier for this task within a run.
	ID string `json:"id"`
	// Name is the short name of the task.
	Name string `json:"name"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Priority orders dispatch under the prioritized strategy (higher first).
	Priority int `json:"priority"`
	// RequiredCapabilities lists capability tags a worker must satisfy.
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Result is the opaque success payload, present only when completed.
	Result any `json:"result,omitempty"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
}

// ProgressUpdate is a single per-task update returned by a progress query.
type ProgressUpdate struct {
	// TaskID identifies the task this update refers to.
	TaskID string `json:"task_id"`
	// Status is the reported task status.
	Status TaskStatus `json:"status"`
	// Result is the success payload for completed tasks.
	Result any `json:"result,omitempty"`
	// Error is the failure message for failed tasks.
	Error string `json:"error,omitempty"`
}
