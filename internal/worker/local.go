package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"foreman/pkg/models"
)

// TaskFunc performs a task and returns its result payload.
type TaskFunc func(ctx context.Context, task *models.Task) (any, error)

// LocalWorker runs tasks in-process on its own goroutine and reports
// progress to a ProgressBoard. It is the reference Worker used by the
// CLI and the engine tests; remote workers only need to satisfy the
// Worker interface and feed some progress oracle.
type LocalWorker struct {
	id           string
	capabilities []string
	fn           TaskFunc
	board        *ProgressBoard

	mu      sync.Mutex
	metrics Metrics
}

// NewLocalWorker creates a worker that executes tasks with fn and
// reports outcomes to the given board.
func NewLocalWorker(id string, capabilities []string, fn TaskFunc, board *ProgressBoard) *LocalWorker {
	return &LocalWorker{
		id:           id,
		capabilities: capabilities,
		fn:           fn,
		board:        board,
	}
}

// ID returns the worker's unique identifier.
func (w *LocalWorker) ID() string {
	return w.id
}

// Capabilities returns the capability tags this worker satisfies.
func (w *LocalWorker) Capabilities() []string {
	return append([]string(nil), w.capabilities...)
}

// Execute hands a task to the worker and returns immediately. The
// in_progress report is posted synchronously so a poll that races the
// handoff never sees a stale terminal entry from a prior attempt.
func (w *LocalWorker) Execute(ctx context.Context, task *models.Task) {
	w.board.Report(models.ProgressUpdate{
		TaskID: task.ID,
		Status: models.TaskStatusInProgress,
	})

	go func() {
		start := time.Now()
		result, err := w.fn(ctx, task)
		elapsed := time.Since(start)

		if err != nil {
			w.RecordOutcome(false, elapsed)
			w.board.Report(models.ProgressUpdate{
				TaskID: task.ID,
				Status: models.TaskStatusFailed,
				Error:  err.Error(),
			})
			log.Printf("[worker] %s failed task %s: %v", w.id, task.ID, err)
			return
		}

		w.RecordOutcome(true, elapsed)
		w.board.Report(models.ProgressUpdate{
			TaskID: task.ID,
			Status: models.TaskStatusCompleted,
			Result: result,
		})
	}()
}

// RecordOutcome updates the worker's execution counters. The worker
// owns its counters; callers outside this package only read Metrics.
func (w *LocalWorker) RecordOutcome(success bool, elapsed time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics.TasksStarted++
	if success {
		w.metrics.TasksCompleted++
	} else {
		w.metrics.TasksFailed++
	}
	w.metrics.TotalDuration += elapsed
}

// Metrics returns a snapshot of the worker's counters.
func (w *LocalWorker) Metrics() Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}
