package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/quorumhq/quorum/internal/toolstore"
	"github.com/quorumhq/quorum/pkg/models"
)

// ToolCaller is the tool-execution surface a data worker talks to. The
// in-process store and the JSON-RPC client both satisfy it.
type ToolCaller interface {
	Call(ctx context.Context, tool string, args map[string]any) (map[string]any, error)
}

// DataWorker serves record operations by delegating to the tool-execution
// service.
type DataWorker struct {
	id    string
	tools ToolCaller
}

// NewDataWorker wraps a tool caller as a worker adapter.
func NewDataWorker(id string, tools ToolCaller) *DataWorker {
	return &DataWorker{id: id, tools: tools}
}

// ID returns the worker identifier.
func (w *DataWorker) ID() string {
	return w.id
}

// knownOps are the tool operations a data task may request.
var knownOps = map[string]bool{
	"get_record":      true,
	"list_records":    true,
	"update_record":   true,
	"create_entry":    true,
	"get_related":     true,
	"records_by_attr": true,
}

// Invoke runs the tool operation named by the task input. The operation name
// and its arguments travel in the input payload; everything else in the
// payload is passed through as tool arguments.
func (w *DataWorker) Invoke(ctx context.Context, task *models.Task) (map[string]any, error) {
	op, ok := task.Input["operation"].(string)
	if !ok || op == "" {
		return nil, NewAgentError(KindValidation, "missing_operation", "data task has no operation")
	}
	if !knownOps[op] {
		return nil, NewAgentError(KindValidation, "unknown_operation", fmt.Sprintf("unknown operation %q", op))
	}

	args := make(map[string]any, len(task.Input))
	for k, v := range task.Input {
		if k == "operation" || k == "query" || k == "priority" {
			continue
		}
		args[k] = v
	}

	payload, err := w.tools.Call(ctx, op, args)
	if err != nil {
		return nil, classifyToolError(op, err)
	}
	return payload, nil
}

// classifyToolError maps tool service failures onto the adapter taxonomy.
func classifyToolError(op string, err error) *AgentError {
	if errors.Is(err, toolstore.ErrNotFound) {
		return &AgentError{Kind: KindWorker, Code: "not_found", Message: fmt.Sprintf("%s: %v", op, err), Err: err}
	}
	var valErr *toolstore.ValidationError
	if errors.As(err, &valErr) {
		return &AgentError{Kind: KindValidation, Code: "invalid_arguments", Message: valErr.Error(), Err: err}
	}
	return Classify(err)
}
