// Package worker wraps each specialist capability behind a uniform call
// contract. Adapters translate their transport into protocol envelopes,
// enforce a per-call timeout, and classify failures. They never retry;
// retry policy belongs to the coordination engine.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quorumhq/quorum/internal/protocol"
	"github.com/quorumhq/quorum/internal/trace"
	"github.com/quorumhq/quorum/pkg/models"
)

// DefaultTimeout bounds a single worker call when no override is configured.
const DefaultTimeout = 30 * time.Second

// Adapter is the uniform contract every worker capability implements.
type Adapter interface {
	// ID returns the worker identifier tasks are routed by.
	ID() string
	// Invoke performs one call. The payload or error maps directly to a
	// protocol response; classification of failures happens in the caller.
	Invoke(ctx context.Context, task *models.Task) (map[string]any, error)
}

// Invoker drives an adapter with the per-call timeout and trace discipline
// the protocol requires: exactly one REQUEST entry and one RESPONSE entry
// bracket every call, whether it succeeds or fails.
type Invoker struct {
	adapter  Adapter
	recorder *trace.Recorder
	timeout  time.Duration
}

// NewInvoker wraps an adapter. A non-positive timeout falls back to
// DefaultTimeout.
func NewInvoker(adapter Adapter, recorder *trace.Recorder, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{adapter: adapter, recorder: recorder, timeout: timeout}
}

// ID returns the wrapped adapter's worker identifier.
func (iv *Invoker) ID() string {
	return iv.adapter.ID()
}

// Call performs one traced invocation on behalf of the named sender.
// Errors come back already classified.
func (iv *Invoker) Call(ctx context.Context, from string, task *models.Task) (map[string]any, *AgentError) {
	msg := protocol.NewTextMessage(protocol.RoleCaller, DescribePayload(task.Input))
	iv.recorder.Record(from, iv.adapter.ID(), models.KindRequest, msg.Text())

	callCtx, cancel := context.WithTimeout(ctx, iv.timeout)
	defer cancel()

	resp, agentErr := iv.invoke(callCtx, task)
	if resp.Status == protocol.StatusError {
		iv.recorder.Record(iv.adapter.ID(), from, models.KindResponse,
			fmt.Sprintf("error [%s]: %s", agentErr.Kind, resp.Error.Message))
		return nil, agentErr
	}

	iv.recorder.Record(iv.adapter.ID(), from, models.KindResponse, DescribePayload(resp.Result))
	return resp.Result, nil
}

// invoke runs the adapter once and folds the outcome into a protocol
// response: a result payload on success, a structured error otherwise,
// never both.
func (iv *Invoker) invoke(ctx context.Context, task *models.Task) (protocol.Response, *AgentError) {
	payload, err := iv.adapter.Invoke(ctx, task)
	if err != nil {
		agentErr := Classify(err)
		return protocol.Fail(agentErr.Code, agentErr.Message), agentErr
	}
	return protocol.OK(payload), nil
}

// DescribePayload renders a payload map deterministically for trace content:
// keys in sorted order, values JSON-encoded.
func DescribePayload(payload map[string]any) string {
	if len(payload) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		enc, err := json.Marshal(payload[k])
		if err != nil {
			b.WriteString(fmt.Sprintf("%v", payload[k]))
			continue
		}
		b.Write(enc)
	}
	b.WriteString("}")
	return b.String()
}
