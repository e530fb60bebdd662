package orchestrator

// Phase is the current stage of the orchestration state machine.
type Phase string

const (
	// PhasePlanning turns the goal into an initial task set.
	PhasePlanning Phase = "planning"
	// PhaseDelegation assigns tasks to workers.
	PhaseDelegation Phase = "delegation"
	// PhaseExecution dispatches eligible tasks to their workers.
	PhaseExecution Phase = "execution"
	// PhaseMonitoring polls worker progress until the run resolves.
	PhaseMonitoring Phase = "monitoring"
	// PhaseHandleFailure re-delegates failed tasks within the retry budget.
	PhaseHandleFailure Phase = "handle_failure"
	// PhaseCompletion is the clean terminal phase.
	PhaseCompletion Phase = "completion"
	// PhaseError is the terminal phase for runs the controller had to abandon.
	PhaseError Phase = "error"
)

// Valid returns true if the phase is a known value.
func (p Phase) Valid() bool {
	switch p {
	case PhasePlanning, PhaseDelegation, PhaseExecution, PhaseMonitoring,
		PhaseHandleFailure, PhaseCompletion, PhaseError:
		return true
	default:
		return false
	}
}

// Terminal returns true if no handler runs after this phase.
func (p Phase) Terminal() bool {
	return p == PhaseCompletion || p == PhaseError
}

// transitions is the phase DAG. The single permitted back-edge is the
// retry loop: monitoring -> handle_failure -> execution -> monitoring.
// Monitoring may also re-enter itself; that is the polling loop.
var transitions = map[Phase][]Phase{
	PhasePlanning:      {PhaseDelegation, PhaseError},
	PhaseDelegation:    {PhaseExecution, PhaseError},
	PhaseExecution:     {PhaseMonitoring, PhaseError},
	PhaseMonitoring:    {PhaseMonitoring, PhaseHandleFailure, PhaseCompletion, PhaseError},
	PhaseHandleFailure: {PhaseExecution, PhaseCompletion, PhaseError},
	PhaseCompletion:    {},
	PhaseError:         {},
}

// CanTransition reports whether the state machine permits moving from one
// phase to another.
func CanTransition(from, to Phase) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
