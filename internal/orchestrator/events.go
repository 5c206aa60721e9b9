// Package orchestrator drives one request end to end: classify the intent,
// build a task plan, execute it against worker adapters, and aggregate the
// results into a final answer with a full communication trace.
package orchestrator

import "time"

// EventType represents the type of engine event.
type EventType string

const (
	// EventClassified indicates the request's intent was classified.
	EventClassified EventType = "classified"
	// EventPlanBuilt indicates the task plan is ready.
	EventPlanBuilt EventType = "plan_built"
	// EventTaskDispatched indicates a task was sent to its worker.
	EventTaskDispatched EventType = "task_dispatched"
	// EventTaskCompleted indicates a task completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskRetried indicates a task is being re-dispatched after a
	// transient failure.
	EventTaskRetried EventType = "task_retried"
	// EventTaskFailed indicates a task failed after any retries.
	EventTaskFailed EventType = "task_failed"
	// EventPlanExtended indicates the engine inserted tasks at run time.
	EventPlanExtended EventType = "plan_extended"
	// EventSessionDone indicates the request reached a terminal state.
	EventSessionDone EventType = "session_done"
)

// Event is emitted by the engine as a request progresses. Consumers that
// fall behind miss events rather than blocking execution.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// WorkerID is the worker involved, if applicable.
	WorkerID string
	// Message provides additional context about the event.
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// emitEvent sends an event without blocking the engine.
func (e *Engine) emitEvent(evt Event) {
	if e.events == nil {
		return
	}
	evt.Timestamp = time.Now()
	select {
	case e.events <- evt:
	default:
		// Drop if the consumer is not keeping up.
	}
}

// Events returns the engine's event stream.
func (e *Engine) Events() <-chan Event {
	return e.events
}
