package orchestrator

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"foreman/pkg/models"
)

// defaultPriority is the neutral priority given to tasks that do not
// specify one, including the synthesized fallback task.
const defaultPriority = 5

// PlanOracle is the external planning oracle. Its output may be a task
// list, a map keyed by task id, a single task, raw JSON-shaped values,
// or nothing at all; the Planner normalizes whatever comes back.
type PlanOracle interface {
	Plan(ctx context.Context, goal string, runContext map[string]any) (any, error)
}

// Planner converts a goal into the run's initial task set. It guarantees
// a non-empty, ordered task list: if the oracle errors or returns nothing
// usable, exactly one fallback task wrapping the raw goal is synthesized.
// Oracle failures are never propagated.
type Planner struct {
	oracle PlanOracle
}

// NewPlanner creates a Planner backed by the given oracle.
func NewPlanner(oracle PlanOracle) *Planner {
	return &Planner{oracle: oracle}
}

// Plan produces the initial task set for a goal. The second return value
// reports whether the fallback path was taken.
func (p *Planner) Plan(ctx context.Context, goal string, runContext map[string]any) ([]*models.Task, bool) {
	raw, err := p.oracle.Plan(ctx, goal, runContext)
	if err != nil {
		log.Printf("[planner] oracle failed, synthesizing fallback task: %v", err)
		return []*models.Task{fallbackTask(goal)}, true
	}

	tasks := normalizePlan(raw)
	if len(tasks) == 0 {
		log.Printf("[planner] oracle produced no usable tasks, synthesizing fallback task")
		return []*models.Task{fallbackTask(goal)}, true
	}
	return tasks, false
}

// fallbackTask wraps the raw goal in a single pending task.
func fallbackTask(goal string) *models.Task {
	name := goal
	if len(name) > 60 {
		name = name[:57] + "..."
	}
	return &models.Task{
		ID:          newTaskID(),
		Name:        name,
		Description: goal,
		Priority:    defaultPriority,
		Status:      models.TaskStatusPending,
		CreatedAt:   time.Now(),
	}
}

// normalizePlan accepts the oracle output shapes and flattens them into
// an ordered task slice. Unusable values yield nil.
func normalizePlan(raw any) []*models.Task {
	switch v := raw.(type) {
	case nil:
		return nil
	case []*models.Task:
		return sanitizeTasks(v)
	case []models.Task:
		tasks := make([]*models.Task, len(v))
		for i := range v {
			t := v[i]
			tasks[i] = &t
		}
		return sanitizeTasks(tasks)
	case *models.Task:
		if v == nil {
			return nil
		}
		return sanitizeTasks([]*models.Task{v})
	case models.Task:
		return sanitizeTasks([]*models.Task{&v})
	case map[string]*models.Task:
		return sanitizeTasks(tasksFromMap(v))
	case map[string]models.Task:
		byID := make(map[string]*models.Task, len(v))
		for id := range v {
			t := v[id]
			byID[id] = &t
		}
		return sanitizeTasks(tasksFromMap(byID))
	default:
		// JSON-shaped values (decoded maps/slices or raw strings) go
		// through a marshal/unmarshal round trip.
		return sanitizeTasks(tasksFromJSONValue(raw))
	}
}

// tasksFromMap orders map values deterministically: by creation time,
// ties broken by id.
func tasksFromMap(byID map[string]*models.Task) []*models.Task {
	tasks := make([]*models.Task, 0, len(byID))
	for id, t := range byID {
		if t == nil {
			continue
		}
		if t.ID == "" {
			t.ID = id
		}
		tasks = append(tasks, t)
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks
}

// plannedTask is the loose JSON shape accepted from planning oracles.
type plannedTask struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	Priority             int      `json:"priority"`
	RequiredCapabilities []string `json:"required_capabilities"`
}

// tasksFromJSONValue round-trips an arbitrary decoded value through JSON
// into task records. It accepts an array of task objects, an object
// keyed by task id, or a single task object.
func tasksFromJSONValue(raw any) []*models.Task {
	if s, ok := raw.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil
		}
		raw = decoded
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}

	var list []plannedTask
	if err := json.Unmarshal(data, &list); err == nil {
		return plannedToTasks(list)
	}

	var single plannedTask
	if err := json.Unmarshal(data, &single); err == nil && (single.Name != "" || single.Title != "" || single.Description != "") {
		return plannedToTasks([]plannedTask{single})
	}

	var keyed map[string]plannedTask
	if err := json.Unmarshal(data, &keyed); err == nil {
		ids := make([]string, 0, len(keyed))
		for id := range keyed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		ordered := make([]plannedTask, 0, len(keyed))
		for _, id := range ids {
			pt := keyed[id]
			if pt.ID == "" {
				pt.ID = id
			}
			ordered = append(ordered, pt)
		}
		return plannedToTasks(ordered)
	}

	return nil
}

func plannedToTasks(planned []plannedTask) []*models.Task {
	now := time.Now()
	var tasks []*models.Task
	for _, pt := range planned {
		name := pt.Name
		if name == "" {
			name = pt.Title
		}
		if name == "" && pt.Description == "" {
			continue
		}
		tasks = append(tasks, &models.Task{
			ID:                   pt.ID,
			Name:                 name,
			Description:          pt.Description,
			Priority:             pt.Priority,
			RequiredCapabilities: pt.RequiredCapabilities,
			CreatedAt:            now,
		})
	}
	return tasks
}

// sanitizeTasks fills in missing ids, statuses, priorities, and creation
// times so downstream components can rely on them.
func sanitizeTasks(tasks []*models.Task) []*models.Task {
	var out []*models.Task
	now := time.Now()
	for _, t := range tasks {
		if t == nil {
			continue
		}
		if t.ID == "" {
			t.ID = newTaskID()
		}
		if t.Name == "" {
			t.Name = t.ID
		}
		if t.Status == "" {
			t.Status = models.TaskStatusPending
		}
		if t.Priority == 0 {
			t.Priority = defaultPriority
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		out = append(out, t)
	}
	return out
}

// newTaskID returns a short unique task id.
func newTaskID() string {
	return uuid.New().String()[:8]
}
