package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"foreman/internal/worker"
	"foreman/pkg/models"
)

// planningSystemPrompt frames the planning call.
const planningSystemPrompt = `You are a task planner for a worker orchestration system. You break goals into small, independent tasks and respond with JSON only.`

// planningPrompt is the prompt template for breaking a goal into tasks.
const planningPrompt = `Break this goal into independent tasks. Each task should be sized for a single worker to complete.

Goal:
%s
%s
Return ONLY a JSON array of tasks with this exact structure (no other text):
[
  {
    "name": "Short task name",
    "description": "Detailed task description",
    "priority": 5,
    "required_capabilities": ["capability-a"]
  }
]

Guidelines:
- Tasks should be as independent as possible
- Priority is 1 (lowest) to 10 (highest); use 5 when unsure
- Use an empty array [] for required_capabilities if any worker can do it`

// delegationSystemPrompt frames the delegation call.
const delegationSystemPrompt = `You are a task delegator for a worker orchestration system. You match tasks to the most suitable worker and respond with JSON only.`

// delegationPrompt is the prompt template for assigning tasks to workers.
const delegationPrompt = `Assign each task to the most suitable worker. A worker must hold every capability a task requires.

Execution strategy: %s

Tasks:
%s

Workers:
%s

Return ONLY a JSON object mapping task id to worker id (no other text):
{"task-id": "worker-id"}

Omit a task from the object if no worker fits it.`

// Oracle answers planning and delegation queries with a Claude model. It
// satisfies the orchestrator's PlanOracle and DelegationOracle interfaces;
// responses are returned as raw JSON strings for the caller to normalize.
type Oracle struct {
	client   *Client
	registry *worker.Registry
}

// NewOracle creates an Oracle backed by the given client and worker
// registry. The registry supplies the worker candidates named in
// delegation prompts.
func NewOracle(client *Client, registry *worker.Registry) *Oracle {
	return &Oracle{client: client, registry: registry}
}

// Plan asks the model to break a goal into tasks. The run context, when
// present, is embedded in the prompt as JSON.
func (o *Oracle) Plan(ctx context.Context, goal string, runContext map[string]any) (any, error) {
	contextBlock := ""
	if len(runContext) > 0 {
		data, err := json.Marshal(runContext)
		if err == nil {
			contextBlock = fmt.Sprintf("\nContext:\n%s\n", data)
		}
	}

	prompt := fmt.Sprintf(planningPrompt, goal, contextBlock)
	response, err := o.client.Complete(ctx, planningSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("planning call: %w", err)
	}

	payload, err := extractJSON(response, '[', ']')
	if err != nil {
		return nil, fmt.Errorf("planning response: %w", err)
	}
	return payload, nil
}

// Delegate asks the model to map the given tasks onto registered workers.
// The filter, when non-empty, restricts which workers are offered as
// candidates.
func (o *Oracle) Delegate(ctx context.Context, tasks []*models.Task, strategy models.ExecutionStrategy, filter []string) (any, error) {
	workers := o.registry.List()
	if len(filter) > 0 {
		workers = o.registry.Capable(filter)
	}
	if len(workers) == 0 {
		return nil, fmt.Errorf("no workers available for delegation")
	}

	prompt := fmt.Sprintf(delegationPrompt, strategy, describeTasks(tasks), describeWorkers(workers))
	response, err := o.client.Complete(ctx, delegationSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("delegation call: %w", err)
	}

	payload, err := extractJSON(response, '{', '}')
	if err != nil {
		return nil, fmt.Errorf("delegation response: %w", err)
	}
	return payload, nil
}

// describeTasks renders a task list for a prompt, one task per line.
func describeTasks(tasks []*models.Task) string {
	var b strings.Builder
	for _, t := range tasks {
		fmt.Fprintf(&b, "- id=%s name=%q priority=%d", t.ID, t.Name, t.Priority)
		if len(t.RequiredCapabilities) > 0 {
			fmt.Fprintf(&b, " requires=%s", strings.Join(t.RequiredCapabilities, ","))
		}
		if t.Error != "" {
			fmt.Fprintf(&b, " previous_error=%q", t.Error)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// describeWorkers renders the worker candidates for a prompt.
func describeWorkers(workers []worker.Worker) string {
	var b strings.Builder
	for _, w := range workers {
		fmt.Fprintf(&b, "- id=%s", w.ID())
		if caps := w.Capabilities(); len(caps) > 0 {
			fmt.Fprintf(&b, " capabilities=%s", strings.Join(caps, ","))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// extractJSON finds the outermost JSON document delimited by open and
// close in a response that might include extra text around it.
func extractJSON(response string, open, close byte) (string, error) {
	start := strings.IndexByte(response, open)
	end := strings.LastIndexByte(response, close)
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON document found in response")
	}
	return response[start : end+1], nil
}
