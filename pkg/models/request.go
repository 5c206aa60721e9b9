package models

import (
	"time"

	"github.com/google/uuid"
)

// Request is the caller's query as received at the entry point.
// It is created once and read-only afterwards.
type Request struct {
	// ID is the correlation identifier generated at entry.
	ID string `json:"id"`
	// Text is the raw natural-language query.
	Text string `json:"text"`
	// ReceivedAt is when the request entered the system.
	ReceivedAt time.Time `json:"received_at"`
}

// NewRequest wraps raw query text in a Request with a fresh correlation ID.
func NewRequest(text string) Request {
	return Request{
		ID:         uuid.New().String(),
		Text:       text,
		ReceivedAt: time.Now(),
	}
}
