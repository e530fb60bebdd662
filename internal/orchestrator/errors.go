package orchestrator

import (
	"time"

	"foreman/pkg/models"
)

// Error codes classifying run failures. Every class except the fatal
// controller failure is captured into the run's error log and reflected
// in the final ExecutionResult rather than propagated.
const (
	// CodePlanningFailure covers planning oracle errors or empty output.
	// Recovered locally by the fallback-task path.
	CodePlanningFailure = "PLANNING_FAILURE"
	// CodeDelegationFailure covers malformed delegation oracle responses.
	// Recovered locally by leaving affected tasks unassigned for the round.
	CodeDelegationFailure = "DELEGATION_FAILURE"
	// CodeExecutionFailure covers per-task worker failures.
	CodeExecutionFailure = "EXECUTION_FAILURE"
	// CodeRecoveryExhausted marks a run whose retry budget ran out with
	// tasks still failed.
	CodeRecoveryExhausted = "RECOVERY_EXHAUSTED"
	// CodeRunCanceled marks a run stopped by the host before resolving.
	CodeRunCanceled = "RUN_CANCELED"
	// CodeFatalControllerFailure is the only class returned as an error
	// from Submit: the engine itself could not be constructed or advanced.
	CodeFatalControllerFailure = "FATAL_CONTROLLER_FAILURE"
)

// newErrorRecord builds an error log entry for the run.
func newErrorRecord(code string, node Phase, message string) models.ErrorRecord {
	return models.ErrorRecord{
		Message:   message,
		Code:      code,
		Node:      string(node),
		Timestamp: time.Now(),
	}
}
