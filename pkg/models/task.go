package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been dispatched.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInFlight indicates the task is awaiting a worker response.
	TaskStatusInFlight TaskStatus = "in_flight"
	// TaskStatusCompleted indicates the worker returned a result.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed after any retries.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInFlight, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// ResultRef marks an input value that must be substituted with the result
// of one or more earlier tasks before dispatch.
type ResultRef struct {
	// TaskIDs are the tasks whose results feed this input.
	TaskIDs []string `json:"task_ids"`
	// Field selects one key from the referenced result. Empty means the
	// whole result payload.
	Field string `json:"field,omitempty"`
	// Aggregate combines results when more than one task is referenced.
	Aggregate Aggregation `json:"aggregate,omitempty"`
}

// Ref builds a reference to a single task's whole result.
func Ref(taskID string) ResultRef {
	return ResultRef{TaskIDs: []string{taskID}}
}

// Task is one worker invocation within a plan.
// Tasks are owned by the coordination engine and mutated only by it.
type Task struct {
	// ID is unique within the request.
	ID string `json:"id"`
	// WorkerID names the worker this task is directed at.
	WorkerID string `json:"worker_id"`
	// Input maps parameter names to values. A value may be a ResultRef,
	// in which case the engine substitutes the referenced result before
	// dispatch.
	Input map[string]any `json:"input"`
	// DependsOn lists task IDs that must complete before this task.
	// Dependencies always reference tasks earlier in the plan sequence.
	DependsOn []string `json:"depends_on,omitempty"`
	// Branch groups tasks into independent subgraphs. Tasks in different
	// branches share no dependencies and may run concurrently.
	Branch int `json:"branch,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Result holds the worker's payload once completed.
	Result map[string]any `json:"result,omitempty"`
	// Error contains the failure message if the task failed.
	Error string `json:"error,omitempty"`
	// Attempts counts dispatches, including retries.
	Attempts int `json:"attempts,omitempty"`
	// Supplementary marks a task whose failure degrades the answer
	// instead of failing the whole session.
	Supplementary bool `json:"supplementary,omitempty"`
	// StartedAt is when the task was first dispatched.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal returns true once the task can no longer change state.
func (t *Task) Terminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// Plan is an ordered sequence of tasks with dependency edges.
// Dependencies only point backwards, so a valid execution order always
// exists without run-time cycle detection.
type Plan struct {
	Tasks []*Task `json:"tasks"`
}

// Branches splits the plan into its independent subgraphs, preserving
// task order within each branch.
func (p *Plan) Branches() [][]*Task {
	byBranch := make(map[int][]*Task)
	maxBranch := 0
	for _, t := range p.Tasks {
		byBranch[t.Branch] = append(byBranch[t.Branch], t)
		if t.Branch > maxBranch {
			maxBranch = t.Branch
		}
	}
	branches := make([][]*Task, 0, maxBranch+1)
	for i := 0; i <= maxBranch; i++ {
		if tasks, ok := byBranch[i]; ok {
			branches = append(branches, tasks)
		}
	}
	return branches
}

// Task returns the task with the given ID, or nil if not present.
func (p *Plan) Task(id string) *Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}
