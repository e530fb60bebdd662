package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"foreman/pkg/models"
)

// planOracleFunc adapts a function to the PlanOracle interface.
type planOracleFunc func(ctx context.Context, goal string, runContext map[string]any) (any, error)

func (f planOracleFunc) Plan(ctx context.Context, goal string, runContext map[string]any) (any, error) {
	return f(ctx, goal, runContext)
}

func TestPlanFallbackOnOracleError(t *testing.T) {
	p := NewPlanner(planOracleFunc(func(ctx context.Context, goal string, _ map[string]any) (any, error) {
		return nil, errors.New("oracle down")
	}))

	tasks, fellBack := p.Plan(context.Background(), "ship the release", nil)
	if !fellBack {
		t.Fatal("expected fallback path")
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want exactly 1 fallback task", len(tasks))
	}
	if tasks[0].Description != "ship the release" {
		t.Errorf("fallback description = %q", tasks[0].Description)
	}
	if tasks[0].Status != models.TaskStatusPending {
		t.Errorf("fallback status = %q, want pending", tasks[0].Status)
	}
	if tasks[0].ID == "" {
		t.Error("fallback task has no id")
	}
}

func TestPlanFallbackOnEmptyOutput(t *testing.T) {
	p := NewPlanner(planOracleFunc(func(ctx context.Context, goal string, _ map[string]any) (any, error) {
		return nil, nil
	}))

	tasks, fellBack := p.Plan(context.Background(), "do nothing", nil)
	if !fellBack || len(tasks) != 1 {
		t.Fatalf("fellBack=%v len=%d, want fallback with 1 task", fellBack, len(tasks))
	}
}

func TestPlanFallbackTruncatesLongGoal(t *testing.T) {
	goal := strings.Repeat("x", 200)
	task := fallbackTask(goal)
	if len(task.Name) > 60 {
		t.Errorf("fallback name length = %d, want <= 60", len(task.Name))
	}
	if task.Description != goal {
		t.Error("fallback description should keep the full goal")
	}
}

func TestPlanFromJSONString(t *testing.T) {
	p := NewPlanner(planOracleFunc(func(ctx context.Context, goal string, _ map[string]any) (any, error) {
		return `[
			{"name": "first", "description": "do the first thing", "priority": 8},
			{"title": "second", "description": "do the second thing"}
		]`, nil
	}))

	tasks, fellBack := p.Plan(context.Background(), "goal", nil)
	if fellBack {
		t.Fatal("did not expect fallback")
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].Name != "first" || tasks[0].Priority != 8 {
		t.Errorf("task 0 = %+v", tasks[0])
	}
	// "title" is accepted as an alias for name.
	if tasks[1].Name != "second" {
		t.Errorf("task 1 name = %q, want second", tasks[1].Name)
	}
	// Missing priority gets the default.
	if tasks[1].Priority != defaultPriority {
		t.Errorf("task 1 priority = %d, want %d", tasks[1].Priority, defaultPriority)
	}
	for _, task := range tasks {
		if task.ID == "" {
			t.Error("sanitize should fill missing ids")
		}
		if task.Status != models.TaskStatusPending {
			t.Errorf("status = %q, want pending", task.Status)
		}
	}
}

func TestPlanFromDecodedMap(t *testing.T) {
	p := NewPlanner(planOracleFunc(func(ctx context.Context, goal string, _ map[string]any) (any, error) {
		return map[string]any{
			"b": map[string]any{"name": "beta", "description": "second"},
			"a": map[string]any{"name": "alpha", "description": "first"},
		}, nil
	}))

	tasks, fellBack := p.Plan(context.Background(), "goal", nil)
	if fellBack {
		t.Fatal("did not expect fallback")
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	// Keyed maps are ordered by id for determinism.
	if tasks[0].ID != "a" || tasks[1].ID != "b" {
		t.Errorf("order = [%s %s], want [a b]", tasks[0].ID, tasks[1].ID)
	}
}

func TestPlanFromTaskSlice(t *testing.T) {
	p := NewPlanner(planOracleFunc(func(ctx context.Context, goal string, _ map[string]any) (any, error) {
		return []*models.Task{{Name: "direct"}}, nil
	}))

	tasks, fellBack := p.Plan(context.Background(), "goal", nil)
	if fellBack || len(tasks) != 1 {
		t.Fatalf("fellBack=%v len=%d", fellBack, len(tasks))
	}
	if tasks[0].ID == "" || tasks[0].Status != models.TaskStatusPending {
		t.Errorf("sanitize did not fill defaults: %+v", tasks[0])
	}
}

func TestPlanUnusableJSONFallsBack(t *testing.T) {
	p := NewPlanner(planOracleFunc(func(ctx context.Context, goal string, _ map[string]any) (any, error) {
		return "not json at all", nil
	}))

	tasks, fellBack := p.Plan(context.Background(), "goal", nil)
	if !fellBack || len(tasks) != 1 {
		t.Fatalf("fellBack=%v len=%d, want fallback", fellBack, len(tasks))
	}
}
