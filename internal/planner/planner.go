// Package planner turns an intent classification into a task plan. Plans
// are built so that dependencies only reference earlier tasks, which
// guarantees a valid execution order without run-time cycle detection.
package planner

import (
	"errors"
	"fmt"

	"github.com/quorumhq/quorum/pkg/models"
)

// Capabilities workers are selected by.
const (
	CapabilityData    = "data"
	CapabilitySupport = "support"
)

// ErrNoWorker indicates no registered worker serves a required capability.
var ErrNoWorker = errors.New("no worker for capability")

// Directory answers which workers can serve a capability, in registration
// order. The worker registry implements it.
type Directory interface {
	WorkersFor(capability string) []string
}

// Builder constructs task plans from classifications.
type Builder struct {
	dir Directory
}

// NewBuilder returns a plan builder backed by the given worker directory.
func NewBuilder(dir Directory) *Builder {
	return &Builder{dir: dir}
}

// Build produces the plan for one classified request.
func (b *Builder) Build(req models.Request, c models.Classification) (*models.Plan, error) {
	if !c.TaskType.Valid() {
		return nil, fmt.Errorf("cannot plan unknown task type %q", c.TaskType)
	}

	var tasks []*models.Task
	switch c.TaskType {
	case models.TaskTypeMultiIntent:
		if len(c.Intents) < 2 {
			return nil, fmt.Errorf("multi_intent classification carries %d intents, need at least 2", len(c.Intents))
		}
		for i, sub := range c.Intents {
			if sub.TaskType == models.TaskTypeMultiIntent {
				return nil, errors.New("multi_intent classifications do not nest")
			}
			branch, err := b.buildLeaf(req, sub, i, fmt.Sprintf("i%d-", i+1))
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, branch...)
		}
	default:
		branch, err := b.buildLeaf(req, c, 0, "")
		if err != nil {
			return nil, err
		}
		tasks = branch
	}

	plan := &models.Plan{Tasks: tasks}
	if err := Validate(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// buildLeaf plans a single non-composite intent into one branch.
func (b *Builder) buildLeaf(req models.Request, c models.Classification, branch int, prefix string) ([]*models.Task, error) {
	switch c.TaskType {
	case models.TaskTypeDataRetrieval:
		return b.buildDataRetrieval(req, c, branch, prefix)
	case models.TaskTypeSupport, models.TaskTypeEscalation:
		return b.buildSupport(req, c, branch, prefix)
	case models.TaskTypeComplexMultiStep:
		return b.buildComplexMultiStep(req, c, branch, prefix)
	default:
		return nil, fmt.Errorf("cannot plan task type %q", c.TaskType)
	}
}

// buildDataRetrieval plans a single data task. With a customer ID the plan
// fetches that record; otherwise it lists records using whatever filters
// were extracted.
func (b *Builder) buildDataRetrieval(req models.Request, c models.Classification, branch int, prefix string) ([]*models.Task, error) {
	workerID, err := b.pickWorker(CapabilityData, c.TargetWorkers)
	if err != nil {
		return nil, err
	}

	input := map[string]any{"query": req.Text}
	if id, ok := c.Entities["customer_id"]; ok {
		input["operation"] = "get_record"
		input["record_id"] = id
	} else {
		input["operation"] = "list_records"
		if status, ok := c.Entities["status"]; ok {
			input["status"] = status
		}
		if plan, ok := c.Entities["plan"]; ok {
			input["plan"] = plan
		}
	}

	return []*models.Task{{
		ID:       prefix + "task-1",
		WorkerID: workerID,
		Input:    input,
		Branch:   branch,
		Status:   models.TaskStatusPending,
	}}, nil
}

// buildSupport plans the opening support task. If the worker's reply later
// carries a needs marker, the engine extends the plan via ExtendForNeeds;
// the builder itself cannot know that before execution.
func (b *Builder) buildSupport(req models.Request, c models.Classification, branch int, prefix string) ([]*models.Task, error) {
	workerID, err := b.pickWorker(CapabilitySupport, c.TargetWorkers)
	if err != nil {
		return nil, err
	}

	return []*models.Task{{
		ID:       prefix + "task-1",
		WorkerID: workerID,
		Input:    map[string]any{"query": req.Text},
		Branch:   branch,
		Status:   models.TaskStatusPending,
	}}, nil
}

// buildComplexMultiStep plans two data fetches whose merged results feed a
// final support task. The second fetch is supplementary: its failure
// degrades the answer rather than failing the session.
func (b *Builder) buildComplexMultiStep(req models.Request, c models.Classification, branch int, prefix string) ([]*models.Task, error) {
	dataWorker, err := b.pickWorker(CapabilityData, c.TargetWorkers)
	if err != nil {
		return nil, err
	}
	supportWorker, err := b.pickWorker(CapabilitySupport, c.TargetWorkers)
	if err != nil {
		return nil, err
	}

	first := map[string]any{"query": req.Text}
	second := map[string]any{"query": req.Text}
	if id, ok := c.Entities["customer_id"]; ok {
		first["operation"] = "get_record"
		first["record_id"] = id
		second["operation"] = "get_related"
		second["record_id"] = id
	} else {
		first["operation"] = "list_records"
		if status, ok := c.Entities["status"]; ok {
			first["status"] = status
		}
		second["operation"] = "list_records"
		if plan, ok := c.Entities["plan"]; ok {
			second["plan"] = plan
		}
	}

	agg := c.Aggregation
	if agg == "" {
		agg = models.AggregationUnion
	}

	t1 := &models.Task{
		ID:       prefix + "task-1",
		WorkerID: dataWorker,
		Input:    first,
		Branch:   branch,
		Status:   models.TaskStatusPending,
	}
	t2 := &models.Task{
		ID:            prefix + "task-2",
		WorkerID:      dataWorker,
		Input:         second,
		Branch:        branch,
		Status:        models.TaskStatusPending,
		Supplementary: true,
	}
	t3 := &models.Task{
		ID:        prefix + "task-3",
		WorkerID:  supportWorker,
		DependsOn: []string{t1.ID, t2.ID},
		Branch:    branch,
		Status:    models.TaskStatusPending,
		Input: map[string]any{
			"query": req.Text,
			"context": models.ResultRef{
				TaskIDs:   []string{t1.ID, t2.ID},
				Aggregate: agg,
			},
		},
	}
	return []*models.Task{t1, t2, t3}, nil
}

// ExtendForNeeds inserts the data fetch a support worker declared it needs,
// plus a follow-up support task that consumes the fetched context. Returns
// the appended tasks. The caller records the delegation in the trace.
func (b *Builder) ExtendForNeeds(plan *models.Plan, after *models.Task, c models.Classification, req models.Request) ([]*models.Task, error) {
	id, ok := c.Entities["customer_id"]
	if !ok {
		return nil, errors.New("support worker needs customer data but no customer_id was extracted")
	}
	dataWorker, err := b.pickWorker(CapabilityData, c.TargetWorkers)
	if err != nil {
		return nil, err
	}

	n := 0
	for _, t := range plan.Tasks {
		if t.Branch == after.Branch {
			n++
		}
	}
	prefix := branchPrefix(after.ID)

	dataTask := &models.Task{
		ID:        fmt.Sprintf("%stask-%d", prefix, n+1),
		WorkerID:  dataWorker,
		DependsOn: []string{after.ID},
		Branch:    after.Branch,
		Status:    models.TaskStatusPending,
		Input: map[string]any{
			"query":     req.Text,
			"operation": "get_record",
			"record_id": id,
		},
	}
	followUp := &models.Task{
		ID:        fmt.Sprintf("%stask-%d", prefix, n+2),
		WorkerID:  after.WorkerID,
		DependsOn: []string{dataTask.ID},
		Branch:    after.Branch,
		Status:    models.TaskStatusPending,
		Input: map[string]any{
			"query":   req.Text,
			"context": models.Ref(dataTask.ID),
		},
	}

	plan.Tasks = append(plan.Tasks, dataTask, followUp)
	if err := Validate(plan); err != nil {
		return nil, err
	}
	return []*models.Task{dataTask, followUp}, nil
}

// branchPrefix recovers the ID prefix ("i2-" or "") from a task ID.
func branchPrefix(taskID string) string {
	for i := 0; i < len(taskID); i++ {
		if taskID[i] == '-' && i+1 < len(taskID) && taskID[i+1] == 't' {
			return taskID[:i+1]
		}
	}
	return ""
}

// pickWorker chooses the worker for a capability: the first entry in the
// classification's target_workers that serves it, falling back to the
// directory's first registered worker. Deterministic by construction.
func (b *Builder) pickWorker(capability string, targets []string) (string, error) {
	candidates := b.dir.WorkersFor(capability)
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoWorker, capability)
	}
	for _, target := range targets {
		for _, candidate := range candidates {
			if target == candidate {
				return target, nil
			}
		}
	}
	return candidates[0], nil
}

// Validate checks the plan invariant: every dependency references a task
// earlier in the sequence and in the same branch. A plan that passes needs
// no cycle detection at run time.
func Validate(plan *models.Plan) error {
	seen := make(map[string]*models.Task, len(plan.Tasks))
	for _, t := range plan.Tasks {
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("duplicate task id %s", t.ID)
		}
		for _, depID := range t.DependsOn {
			dep, ok := seen[depID]
			if !ok {
				return fmt.Errorf("task %s depends on %s which does not precede it", t.ID, depID)
			}
			if dep.Branch != t.Branch {
				return fmt.Errorf("task %s depends on %s in a different branch", t.ID, depID)
			}
		}
		seen[t.ID] = t
	}
	return nil
}
