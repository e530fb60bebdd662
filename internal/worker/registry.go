// Package worker defines the worker boundary of the orchestration core:
// the registry of available workers, the execution entry point tasks are
// handed to, and an in-process worker implementation that reports
// progress through a poll board.
package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"foreman/pkg/models"
)

// Metrics is a snapshot of a worker's execution counters. Counters are
// updated only by the worker itself through RecordOutcome; the
// orchestration core never reaches into worker internals.
type Metrics struct {
	// TasksStarted is the number of tasks handed to this worker.
	TasksStarted int
	// TasksCompleted is the number of tasks the worker finished successfully.
	TasksCompleted int
	// TasksFailed is the number of tasks the worker reported as failed.
	TasksFailed int
	// TotalDuration is the cumulative wall time spent executing tasks.
	TotalDuration time.Duration
}

// Worker is an independently executing unit that performs tasks.
// Execute is a fire-and-forget handoff: it must return immediately and
// run the task asynchronously, reporting the outcome through whatever
// progress channel the implementation uses.
type Worker interface {
	// ID returns the worker's unique identifier.
	ID() string
	// Capabilities returns the capability tags this worker satisfies.
	Capabilities() []string
	// Execute hands a task to the worker without blocking.
	Execute(ctx context.Context, task *models.Task)
	// RecordOutcome updates the worker's own execution counters.
	RecordOutcome(success bool, elapsed time.Duration)
	// Metrics returns a snapshot of the worker's counters.
	Metrics() Metrics
}

// Registry is an explicit, mutex-guarded collection of available
// workers. It is passed by reference to the components that need it;
// there is no process-wide singleton.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]Worker
}

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[string]Worker)}
}

// Register adds a worker, replacing any worker with the same id.
func (r *Registry) Register(w Worker) {
	if w == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w.ID()] = w
}

// Unregister removes the worker with the given id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, id)
}

// Get returns the worker with the given id, or nil.
func (r *Registry) Get(id string) Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.workers[id]
}

// IDs returns all registered worker ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns all registered workers, ordered by id.
func (r *Registry) List() []Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	workers := make([]Worker, 0, len(ids))
	for _, id := range ids {
		workers = append(workers, r.workers[id])
	}
	return workers
}

// Len returns the number of registered workers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// Capable returns the workers whose capability tags cover every required
// tag. An empty requirement set matches every worker.
func (r *Registry) Capable(required []string) []Worker {
	var capable []Worker
	for _, w := range r.List() {
		if Satisfies(w.Capabilities(), required) {
			capable = append(capable, w)
		}
	}
	return capable
}

// Satisfies reports whether the offered capability tags cover every
// required tag.
func Satisfies(offered, required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]bool, len(offered))
	for _, tag := range offered {
		have[tag] = true
	}
	for _, tag := range required {
		if !have[tag] {
			return false
		}
	}
	return true
}
