// Package orchestrator implements the task orchestration state machine.
//
// The orchestrator package provides functionality for:
//   - Planning: turning a goal into an ordered task set via a planning oracle
//   - Delegation: assigning tasks to registered workers via a delegation oracle
//   - Execution and monitoring: dispatching work and polling progress until done
//   - Recovery: re-delegating failed tasks within a bounded retry budget
//   - Aggregation: folding the terminal state into a single execution report
//
// The Engine drives a run through the phases planning, delegation,
// execution, monitoring, handle_failure, and finally completion or error.
// Each phase handler receives an immutable snapshot of the run state and
// returns a delta; the driver merges deltas one at a time, so handlers
// never share mutable state.
//
// Example usage:
//
//	engine, err := orchestrator.NewEngine(orchestrator.EngineConfig{
//		Planner:    planOracle,
//		Delegation: delegationOracle,
//		Progress:   board,
//		Registry:   registry,
//	})
//	if err != nil {
//		return err
//	}
//	result, err := engine.Submit(ctx, "Index the product catalog", nil)
package orchestrator
