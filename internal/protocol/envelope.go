// Package protocol defines the wire-agnostic message shapes exchanged with
// workers. Adapters translate their transport into these envelopes; the
// coordination engine never sees transport details.
package protocol

import (
	"strings"

	"github.com/google/uuid"
)

// Role identifies which side of an exchange produced a message.
type Role string

const (
	RoleCaller Role = "caller"
	RoleWorker Role = "worker"
)

// PartKind identifies the content type of a message part.
type PartKind string

const (
	// PartKindText is a plain text part, currently the only kind.
	PartKindText PartKind = "text"
)

// Part is one typed unit of message content.
type Part struct {
	Kind PartKind `json:"kind"`
	Text string   `json:"text,omitempty"`
}

// Message is the envelope carried by every worker call.
type Message struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextMessage builds a message with a fresh ID and a single text part.
func NewTextMessage(role Role, text string) Message {
	return Message{
		ID:    uuid.New().String(),
		Role:  role,
		Parts: []Part{{Kind: PartKindText, Text: text}},
	}
}

// Text concatenates the message's text parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Kind == PartKindText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ResponseStatus marks a response as success or error.
type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "success"
	StatusError   ResponseStatus = "error"
)

// ErrorDetail is the structured error carried by failed responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the envelope returned for every worker call: either a result
// payload or a structured error, never both.
type Response struct {
	Status ResponseStatus `json:"status"`
	Result map[string]any `json:"result,omitempty"`
	Error  *ErrorDetail   `json:"error,omitempty"`
}

// OK builds a success response around a result payload.
func OK(result map[string]any) Response {
	return Response{Status: StatusSuccess, Result: result}
}

// Fail builds an error response with a structured code and message.
func Fail(code, message string) Response {
	return Response{Status: StatusError, Error: &ErrorDetail{Code: code, Message: message}}
}
