// Package trace records every inter-agent exchange of one request as an
// ordered, append-only log. Concurrent plan branches append to the same
// recorder, so step numbers stay a total order.
package trace

import (
	"sync"
	"time"

	"github.com/quorumhq/quorum/pkg/models"
)

// Recorder is the append-only communication log for one session.
// Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	next    int
	entries []models.TraceEntry
}

// NewRecorder returns an empty recorder whose first entry gets step 1.
func NewRecorder() *Recorder {
	return &Recorder{next: 1}
}

// Record appends an entry and returns its step number. Entries are never
// reordered or dropped afterwards, retried calls append new entries.
func (r *Recorder) Record(from, to string, kind models.MessageKind, content string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	step := r.next
	r.next++
	r.entries = append(r.entries, models.TraceEntry{
		Step:      step,
		From:      from,
		To:        to,
		Kind:      kind,
		Content:   content,
		Timestamp: time.Now(),
	})
	return step
}

// Entries returns a copy of the log in step order.
func (r *Recorder) Entries() []models.TraceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.TraceEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Flow returns the condensed {from, to, kind} view used for the
// human-readable communication summary.
func (r *Recorder) Flow() []models.FlowStep {
	r.mu.Lock()
	defer r.mu.Unlock()

	flow := make([]models.FlowStep, len(r.entries))
	for i, e := range r.entries {
		flow[i] = models.FlowStep{From: e.From, To: e.To, Kind: e.Kind}
	}
	return flow
}
