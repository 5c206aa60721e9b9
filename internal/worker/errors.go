package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a worker call failure. Only timeout and transport
// failures are retriable; the rest surface immediately.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindTransport  ErrorKind = "transport_error"
	KindWorker     ErrorKind = "worker_error"
	KindMalformed  ErrorKind = "malformed_response"
	KindValidation ErrorKind = "validation_error"
)

// AgentError is a classified worker call failure.
type AgentError struct {
	// Kind drives retry policy in the coordination engine.
	Kind ErrorKind
	// Code is a short machine-readable identifier.
	Code string
	// Message is human-readable and safe to surface in traces.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *AgentError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// Retriable returns true if the engine may re-dispatch the task.
func (e *AgentError) Retriable() bool {
	return e.Kind == KindTimeout || e.Kind == KindTransport
}

// NewAgentError builds a classified error without an underlying cause.
func NewAgentError(kind ErrorKind, code, message string) *AgentError {
	return &AgentError{Kind: kind, Code: code, Message: message}
}

// Classify maps an arbitrary error from a worker call into an AgentError.
// Already-classified errors pass through unchanged. Context deadline and
// network failures are transient; anything else is a worker error.
func Classify(err error) *AgentError {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AgentError{Kind: KindTimeout, Code: "deadline_exceeded", Message: "worker call timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AgentError{Kind: KindTimeout, Code: "canceled", Message: "worker call canceled", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &AgentError{Kind: KindTimeout, Code: "net_timeout", Message: err.Error(), Err: err}
		}
		return &AgentError{Kind: KindTransport, Code: "net_error", Message: err.Error(), Err: err}
	}

	return &AgentError{Kind: KindWorker, Code: "worker_failure", Message: err.Error(), Err: err}
}
