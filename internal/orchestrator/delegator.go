package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/kaptinlin/jsonrepair"

	"foreman/internal/worker"
	"foreman/pkg/models"
)

// DelegationOracle is the external delegation oracle. Given a task
// summary it proposes an assignment map from task id to worker id; the
// response may be a decoded map or a JSON string, possibly malformed.
type DelegationOracle interface {
	Delegate(ctx context.Context, tasks []*models.Task, strategy models.ExecutionStrategy, filter []string) (any, error)
}

// Delegator assigns tasks to workers through the delegation oracle.
// Tasks the oracle does not answer for, or whose required capabilities
// no registered worker satisfies, are left unassigned for the round and
// picked up again by the next delegation round.
type Delegator struct {
	oracle   DelegationOracle
	registry *worker.Registry
	filter   []string
}

// NewDelegator creates a Delegator backed by the given oracle and
// worker registry. The optional filter is forwarded to every oracle
// call.
func NewDelegator(oracle DelegationOracle, registry *worker.Registry, filter []string) *Delegator {
	return &Delegator{oracle: oracle, registry: registry, filter: filter}
}

// Delegate runs an initial delegation round over the given tasks. The
// returned delta carries the new assignments plus a pending status for
// every task assigned in this round that has no status yet; tasks that
// already have a status are left untouched, which keeps the round
// idempotent across retries.
func (d *Delegator) Delegate(ctx context.Context, snap *RunState, tasks []*models.Task) *StateDelta {
	delta := &StateDelta{
		Status:      make(map[string]models.TaskStatus),
		Assignments: make(map[string]string),
	}

	assignments, errs := d.Assignments(ctx, tasks, snap.Strategy)
	delta.Errors = errs

	for id, workerID := range assignments {
		delta.Assignments[id] = workerID
		if _, tracked := snap.Store.Status[id]; !tracked {
			delta.Status[id] = models.TaskStatusPending
		}
	}
	return delta
}

// Assignments asks the oracle for an assignment map covering the given
// tasks and validates it against the registry. Oracle failures and
// malformed responses are captured as error records, never propagated;
// the affected tasks simply stay unassigned this round.
func (d *Delegator) Assignments(ctx context.Context, tasks []*models.Task, strategy models.ExecutionStrategy) (map[string]string, []models.ErrorRecord) {
	candidates := make([]*models.Task, 0, len(tasks))
	byID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		if len(d.registry.Capable(t.RequiredCapabilities)) == 0 {
			log.Printf("[delegator] no worker satisfies capabilities %v for task %s, leaving unassigned", t.RequiredCapabilities, t.ID)
			continue
		}
		candidates = append(candidates, t)
		byID[t.ID] = t
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	raw, err := d.oracle.Delegate(ctx, candidates, strategy, d.filter)
	if err != nil {
		log.Printf("[delegator] oracle failed, tasks stay unassigned this round: %v", err)
		return nil, []models.ErrorRecord{
			newErrorRecord(CodeDelegationFailure, PhaseDelegation, fmt.Sprintf("delegation oracle: %v", err)),
		}
	}

	proposed, err := parseAssignments(raw)
	if err != nil {
		log.Printf("[delegator] unparseable oracle response: %v", err)
		return nil, []models.ErrorRecord{
			newErrorRecord(CodeDelegationFailure, PhaseDelegation, fmt.Sprintf("parse delegation response: %v", err)),
		}
	}

	assignments := make(map[string]string)
	for taskID, workerID := range proposed {
		task, ok := byID[taskID]
		if !ok {
			log.Printf("[delegator] oracle assigned unknown task %s, ignoring", taskID)
			continue
		}
		w := d.registry.Get(workerID)
		if w == nil {
			log.Printf("[delegator] oracle assigned task %s to unknown worker %s, leaving unassigned", taskID, workerID)
			continue
		}
		if !worker.Satisfies(w.Capabilities(), task.RequiredCapabilities) {
			log.Printf("[delegator] worker %s lacks capabilities %v for task %s, leaving unassigned", workerID, task.RequiredCapabilities, taskID)
			continue
		}
		assignments[taskID] = workerID
	}
	return assignments, nil
}

// parseAssignments normalizes an oracle response into a task-to-worker
// map. It tolerates decoded maps, JSON strings, and JSON that needs
// repair before it unmarshals.
func parseAssignments(raw any) (map[string]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return v, nil
	case map[string]any:
		assignments := make(map[string]string, len(v))
		for id, val := range v {
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("assignment for task %q is not a string", id)
			}
			assignments[id] = s
		}
		return assignments, nil
	case []byte:
		return assignmentsFromJSON(string(v))
	case string:
		return assignmentsFromJSON(v)
	default:
		return nil, fmt.Errorf("unsupported assignment response type %T", raw)
	}
}

// assignmentsFromJSON unmarshals a JSON object of task id to worker id,
// repairing the document first if it does not parse as-is.
func assignmentsFromJSON(s string) (map[string]string, error) {
	var assignments map[string]string
	if err := json.Unmarshal([]byte(s), &assignments); err == nil {
		return assignments, nil
	}

	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return nil, fmt.Errorf("repair assignment JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &assignments); err != nil {
		return nil, fmt.Errorf("unmarshal assignment JSON: %w", err)
	}
	return assignments, nil
}
