package orchestrator

import (
	"foreman/pkg/models"
)

// TaskStore holds the canonical task records for one orchestration run,
// along with per-task status, result, and error maps. Tasks are never
// deleted during a run; status moves pending -> in_progress ->
// {completed|failed}, with failed -> pending reserved for recovery.
type TaskStore struct {
	// Tasks maps task id to its record.
	Tasks map[string]*models.Task
	// Order lists task ids in creation order.
	Order []string
	// Status maps task id to its current status. A task the delegator
	// never assigned has no entry here.
	Status map[string]models.TaskStatus
	// Results maps task id to its success payload.
	Results map[string]any
	// Errors maps task id to its most recent failure message.
	Errors map[string]string
}

// NewTaskStore creates an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		Tasks:   make(map[string]*models.Task),
		Status:  make(map[string]models.TaskStatus),
		Results: make(map[string]any),
		Errors:  make(map[string]string),
	}
}

// Add registers a task. Re-adding an existing id overwrites the record
// but keeps its position in the creation order.
func (s *TaskStore) Add(task *models.Task) {
	if task == nil || task.ID == "" {
		return
	}
	if _, exists := s.Tasks[task.ID]; !exists {
		s.Order = append(s.Order, task.ID)
	}
	s.Tasks[task.ID] = task
}

// Get returns the task with the given id, or nil.
func (s *TaskStore) Get(id string) *models.Task {
	return s.Tasks[id]
}

// List returns all tasks in creation order.
func (s *TaskStore) List() []*models.Task {
	tasks := make([]*models.Task, 0, len(s.Order))
	for _, id := range s.Order {
		if t, ok := s.Tasks[id]; ok {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// Len returns the number of tasks in the store.
func (s *TaskStore) Len() int {
	return len(s.Tasks)
}

// CountByStatus returns the number of tasks with the given status.
func (s *TaskStore) CountByStatus(status models.TaskStatus) int {
	count := 0
	for _, st := range s.Status {
		if st == status {
			count++
		}
	}
	return count
}

// Clone returns a deep copy of the store's maps. Task records are shared;
// handlers treat them as read-only and express changes through the
// status/result/error maps.
func (s *TaskStore) Clone() *TaskStore {
	clone := &TaskStore{
		Tasks:   make(map[string]*models.Task, len(s.Tasks)),
		Order:   append([]string(nil), s.Order...),
		Status:  make(map[string]models.TaskStatus, len(s.Status)),
		Results: make(map[string]any, len(s.Results)),
		Errors:  make(map[string]string, len(s.Errors)),
	}
	for id, t := range s.Tasks {
		clone.Tasks[id] = t
	}
	for id, st := range s.Status {
		clone.Status[id] = st
	}
	for id, r := range s.Results {
		clone.Results[id] = r
	}
	for id, e := range s.Errors {
		clone.Errors[id] = e
	}
	return clone
}
