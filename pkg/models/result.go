package models

import "time"

// RunStatus is the overall outcome of an orchestration run.
type RunStatus string

const (
	// RunSuccess indicates every task completed.
	RunSuccess RunStatus = "success"
	// RunPartial indicates some tasks completed and some failed.
	RunPartial RunStatus = "partial"
	// RunFailed indicates every task failed.
	RunFailed RunStatus = "failed"
)

// RunStats summarizes per-task outcomes for a run.
type RunStats struct {
	// Total is the number of tasks in the run.
	Total int `json:"total" yaml:"total"`
	// Completed is the number of tasks that completed successfully.
	Completed int `json:"completed" yaml:"completed"`
	// Failed is the number of tasks that ended in failure.
	Failed int `json:"failed" yaml:"failed"`
	// SuccessRate is Completed/Total, or 0 when Total is 0.
	SuccessRate float64 `json:"success_rate" yaml:"success_rate"`
}

// ErrorRecord captures a non-fatal failure observed during a run.
type ErrorRecord struct {
	// Message is the human-readable failure description.
	Message string `json:"message" yaml:"message"`
	// Code classifies the failure (see orchestrator error codes).
	Code string `json:"code" yaml:"code"`
	// Node names the phase or component that observed the failure.
	Node string `json:"node" yaml:"node"`
	// Timestamp is when the failure was recorded.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// TaskOutcome is the terminal record of one task within a run.
type TaskOutcome struct {
	// ID is the task's unique identifier.
	ID string `json:"id" yaml:"id"`
	// Name is the task's short name.
	Name string `json:"name" yaml:"name"`
	// Description is the task's full description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Priority is the task's scheduling priority.
	Priority int `json:"priority" yaml:"priority"`
	// Status is the task's terminal status.
	Status TaskStatus `json:"status" yaml:"status"`
	// Worker is the id of the worker the task was last assigned to.
	Worker string `json:"worker,omitempty" yaml:"worker,omitempty"`
	// Error is the task's last failure message, if any.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// CreatedAt is when the task was planned.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// ExecutionResult is the final report returned to the host for a run.
type ExecutionResult struct {
	// Status is the overall run outcome.
	Status RunStatus `json:"status" yaml:"status"`
	// Summary is a human-readable completion summary.
	Summary string `json:"summary" yaml:"summary"`
	// Results maps task name (or id when unnamed) to the task's result payload.
	Results map[string]any `json:"results" yaml:"results"`
	// Stats holds the per-task outcome counts.
	Stats RunStats `json:"stats" yaml:"stats"`
	// Tasks lists every task's terminal record in creation order.
	Tasks []TaskOutcome `json:"tasks" yaml:"tasks"`
	// Errors lists every failure captured during the run.
	Errors []ErrorRecord `json:"errors,omitempty" yaml:"errors,omitempty"`
	// Elapsed is the wall time from submission to the terminal phase.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}
