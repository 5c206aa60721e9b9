package models

import "time"

// MessageKind categorizes a trace entry.
type MessageKind string

const (
	// KindRequest records a call being sent to a worker.
	KindRequest MessageKind = "REQUEST"
	// KindDelegate records the engine inserting work on a worker's behalf.
	KindDelegate MessageKind = "DELEGATE"
	// KindResponse records a worker's reply, successful or not.
	KindResponse MessageKind = "RESPONSE"
	// KindFinalResponse records the answer returned to the caller.
	KindFinalResponse MessageKind = "FINAL_RESPONSE"
)

// TraceEntry is one inter-agent exchange in the communication log.
// Entries are appended in step order and never mutated.
type TraceEntry struct {
	// Step is the position in the total order of exchanges.
	Step int `json:"step"`
	// From is the sending agent.
	From string `json:"from"`
	// To is the receiving agent.
	To string `json:"to"`
	// Kind categorizes the exchange.
	Kind MessageKind `json:"kind"`
	// Content is a human-readable rendering of the exchange.
	Content string `json:"content"`
	// Timestamp is when the entry was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// FlowStep is the condensed view of a trace entry used for summaries.
type FlowStep struct {
	From string      `json:"from"`
	To   string      `json:"to"`
	Kind MessageKind `json:"kind"`
}
