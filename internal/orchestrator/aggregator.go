package orchestrator

import (
	"fmt"

	"foreman/pkg/models"
)

// Aggregate computes the final report for a terminal run state. It is
// pure: calling it twice on the same state yields identical results.
func Aggregate(s *RunState) models.ExecutionResult {
	total := s.Store.Len()
	completed := s.Store.CountByStatus(models.TaskStatusCompleted)
	failed := s.Store.CountByStatus(models.TaskStatusFailed)

	var status models.RunStatus
	switch {
	case failed == 0:
		status = models.RunSuccess
	case failed == total && total > 0:
		status = models.RunFailed
	default:
		status = models.RunPartial
	}

	results := make(map[string]any, len(s.Store.Results))
	for id, result := range s.Store.Results {
		key := id
		if task := s.Store.Get(id); task != nil && task.Name != "" {
			key = task.Name
		}
		results[key] = result
	}

	successRate := 0.0
	if total > 0 {
		successRate = float64(completed) / float64(total)
	}

	outcomes := make([]models.TaskOutcome, 0, total)
	for _, id := range s.Store.Order {
		task := s.Store.Get(id)
		if task == nil {
			continue
		}
		outcomes = append(outcomes, models.TaskOutcome{
			ID:          id,
			Name:        task.Name,
			Description: task.Description,
			Priority:    task.Priority,
			Status:      s.Store.Status[id],
			Worker:      s.Assignments[id],
			Error:       s.Store.Errors[id],
			CreatedAt:   task.CreatedAt,
		})
	}

	return models.ExecutionResult{
		Status:  status,
		Summary: fmt.Sprintf("Completed %d of %d tasks", completed, total),
		Results: results,
		Stats: models.RunStats{
			Total:       total,
			Completed:   completed,
			Failed:      failed,
			SuccessRate: successRate,
		},
		Tasks:   outcomes,
		Errors:  s.Errors,
		Elapsed: s.EndTime.Sub(s.StartTime),
	}
}
