package models

import "fmt"

// ExecutionStrategy governs dispatch order and concurrency for a run.
type ExecutionStrategy string

const (
	// StrategySequential dispatches one task at a time in creation order.
	StrategySequential ExecutionStrategy = "sequential"
	// StrategyParallel dispatches all eligible tasks in a single fan-out.
	StrategyParallel ExecutionStrategy = "parallel"
	// StrategyPrioritized dispatches in descending priority order.
	StrategyPrioritized ExecutionStrategy = "prioritized"
)

// Valid returns true if the strategy is a known value.
func (s ExecutionStrategy) Valid() bool {
	switch s {
	case StrategySequential, StrategyParallel, StrategyPrioritized:
		return true
	default:
		return false
	}
}

// ParseStrategy converts a string into an ExecutionStrategy.
func ParseStrategy(s string) (ExecutionStrategy, error) {
	strategy := ExecutionStrategy(s)
	if !strategy.Valid() {
		return "", fmt.Errorf("unknown execution strategy %q (want sequential, parallel, or prioritized)", s)
	}
	return strategy, nil
}
