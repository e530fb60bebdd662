package worker

import (
	"context"
	"sync"

	"foreman/pkg/models"
)

// ProgressBoard collects per-task progress reports from in-process
// workers and serves them to the monitor's progress queries. It keeps
// the latest update per task, so polling is idempotent: re-reading a
// terminal report merges to the same state. A later report always
// replaces an earlier one; a retried task legitimately moves a failed
// entry back to in_progress when its new execution starts.
type ProgressBoard struct {
	mu      sync.RWMutex
	updates map[string]models.ProgressUpdate
}

// NewProgressBoard creates an empty progress board.
func NewProgressBoard() *ProgressBoard {
	return &ProgressBoard{updates: make(map[string]models.ProgressUpdate)}
}

// Report records the latest update for a task.
func (b *ProgressBoard) Report(update models.ProgressUpdate) {
	if update.TaskID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates[update.TaskID] = update
}

// PollProgress returns the latest update for every reported task. It
// implements the progress oracle consumed by the monitor.
func (b *ProgressBoard) PollProgress(ctx context.Context) ([]models.ProgressUpdate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	updates := make([]models.ProgressUpdate, 0, len(b.updates))
	for _, u := range b.updates {
		updates = append(updates, u)
	}
	return updates, nil
}
