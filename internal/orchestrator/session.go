package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/quorumhq/quorum/internal/trace"
	"github.com/quorumhq/quorum/internal/worker"
	"github.com/quorumhq/quorum/pkg/models"
)

// session is the aggregate state of one coordinated request. It is owned
// by a single Handle call; the mutex only orders the session's own
// concurrent branches, never different requests.
type session struct {
	req            models.Request
	classification models.Classification
	rec            *trace.Recorder

	mu       sync.Mutex
	state    State
	plan     *models.Plan
	extended map[string]bool // support tasks whose needs were already served
	degraded []string        // human-readable notes about missing data
	failure  *worker.AgentError
	deadline bool // the global deadline cut execution short
}

func newSession(req models.Request) *session {
	return &session{
		req:      req,
		rec:      trace.NewRecorder(),
		state:    StatePlanning,
		extended: make(map[string]bool),
	}
}

func (s *session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// branchClassification returns the leaf classification that produced a
// branch: the sub-intent for multi_intent plans, the whole classification
// otherwise.
func (s *session) branchClassification(branch int) models.Classification {
	c := s.classification
	if c.TaskType == models.TaskTypeMultiIntent && branch < len(c.Intents) {
		return c.Intents[branch]
	}
	return c
}

// nextReady picks the first pending task in a branch whose dependencies
// are settled. A dependency counts as settled when completed, or when it
// failed but was merely supplementary. Returns nil when the branch has no
// runnable task; blocked is true if a pending task can never run because
// a required dependency failed.
func (s *session) nextReady(branch int) (task *models.Task, blocked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.plan.Tasks {
		if t.Branch != branch || t.Status != models.TaskStatusPending {
			continue
		}
		ready := true
		dead := false
		for _, depID := range t.DependsOn {
			dep := s.plan.Task(depID)
			switch {
			case dep == nil:
				dead = true
			case dep.Status == models.TaskStatusCompleted:
			case dep.Status == models.TaskStatusFailed && dep.Supplementary:
			case dep.Status == models.TaskStatusFailed:
				dead = true
			default:
				ready = false
			}
		}
		if dead {
			blocked = true
			continue
		}
		if ready {
			return t, false
		}
	}
	return nil, blocked
}

// markInFlight transitions a task to in_flight and counts the attempt.
func (s *session) markInFlight(t *models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	t.Status = models.TaskStatusInFlight
	if t.StartedAt == nil {
		t.StartedAt = &now
	}
	t.Attempts++
}

// markCompleted stores a task's result.
func (s *session) markCompleted(t *models.Task, result map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	t.Status = models.TaskStatusCompleted
	t.Result = result
	t.CompletedAt = &now
}

// markFailed records a task failure. Supplementary failures leave a
// degradation note; anything else fails the session.
func (s *session) markFailed(t *models.Task, agentErr *worker.AgentError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	t.Status = models.TaskStatusFailed
	t.Error = agentErr.Error()
	t.CompletedAt = &now

	if t.Supplementary {
		s.degraded = append(s.degraded,
			fmt.Sprintf("some supporting data from %s could not be retrieved", t.WorkerID))
		return
	}
	if s.failure == nil {
		s.failure = agentErr
	}
}

// resolveInputs substitutes result references in a task's input payload
// with the referenced tasks' stored results.
func (s *session) resolveInputs(t *models.Task) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	input := make(map[string]any, len(t.Input))
	for k, v := range t.Input {
		if ref, ok := v.(models.ResultRef); ok {
			input[k] = s.resolveRefLocked(ref)
			continue
		}
		input[k] = v
	}
	return input
}

// resolveRefLocked collects the referenced results, merging when the
// reference spans several tasks. Failed supplementary tasks contribute
// nothing. Caller holds s.mu.
func (s *session) resolveRefLocked(ref models.ResultRef) any {
	var payloads []map[string]any
	for _, id := range ref.TaskIDs {
		t := s.plan.Task(id)
		if t == nil || t.Status != models.TaskStatusCompleted || t.Result == nil {
			continue
		}
		payloads = append(payloads, t.Result)
	}

	if len(payloads) == 0 {
		return nil
	}
	if len(payloads) == 1 && len(ref.TaskIDs) == 1 {
		if ref.Field != "" {
			return payloads[0][ref.Field]
		}
		return payloads[0]
	}
	return mergeResults(payloads, ref.Aggregate)
}

// completedResults snapshots every completed task's result, keyed by task
// ID, for the aggregation step.
func (s *session) completedResults() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any)
	for _, t := range s.plan.Tasks {
		if t.Status == models.TaskStatusCompleted && t.Result != nil {
			out[t.ID] = t.Result
		}
	}
	return out
}

// terminalReply returns the final task's reply when the plan is a single
// branch ending in a completed support-style task. Plans shaped that way
// already composed the answer; re-invoking the aggregator would only
// restate it.
func (s *session) terminalReply() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.plan.Tasks) == 0 {
		return "", false
	}
	for _, t := range s.plan.Tasks {
		if t.Branch != 0 {
			return "", false
		}
	}
	last := s.plan.Tasks[len(s.plan.Tasks)-1]
	if last.Status != models.TaskStatusCompleted {
		return "", false
	}
	reply, ok := last.Result["reply"].(string)
	return reply, ok && reply != ""
}

// needsCustomerData reports whether a support payload carries the
// structured marker asking for account data.
func needsCustomerData(payload map[string]any) bool {
	switch needs := payload["needs"].(type) {
	case []string:
		for _, n := range needs {
			if n == "customer_data" {
				return true
			}
		}
	case []any:
		for _, n := range needs {
			if n == "customer_data" {
				return true
			}
		}
	}
	return false
}

// mergeResults combines data payloads by the declared aggregation op.
// Records are keyed by their "id" field; payloads without recognizable
// record lists fall back to positional concatenation.
func mergeResults(payloads []map[string]any, op models.Aggregation) map[string]any {
	var lists [][]map[string]any
	for _, p := range payloads {
		if records := extractRecords(p); records != nil {
			lists = append(lists, records)
		}
	}
	if len(lists) == 0 {
		return map[string]any{"results": payloads}
	}

	var merged []map[string]any
	if op == models.AggregationIntersection {
		merged = intersectRecords(lists)
	} else {
		merged = unionRecords(lists)
	}
	return map[string]any{"records": merged, "count": len(merged)}
}

// extractRecords pulls the record list out of a data payload, whichever
// key the operation used.
func extractRecords(payload map[string]any) []map[string]any {
	if rec, ok := payload["record"].(map[string]any); ok {
		return []map[string]any{rec}
	}
	for _, key := range []string{"records", "related"} {
		switch list := payload[key].(type) {
		case []map[string]any:
			return list
		case []any:
			var out []map[string]any
			for _, item := range list {
				if rec, ok := item.(map[string]any); ok {
					out = append(out, rec)
				}
			}
			return out
		}
	}
	return nil
}

func recordKey(rec map[string]any) string {
	return fmt.Sprint(rec["id"])
}

func unionRecords(lists [][]map[string]any) []map[string]any {
	seen := make(map[string]bool)
	var out []map[string]any
	for _, list := range lists {
		for _, rec := range list {
			key := recordKey(rec)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, rec)
		}
	}
	return out
}

func intersectRecords(lists [][]map[string]any) []map[string]any {
	counts := make(map[string]int)
	for _, list := range lists {
		inList := make(map[string]bool)
		for _, rec := range list {
			key := recordKey(rec)
			if !inList[key] {
				inList[key] = true
				counts[key]++
			}
		}
	}

	seen := make(map[string]bool)
	var out []map[string]any
	for _, rec := range lists[0] {
		key := recordKey(rec)
		if counts[key] == len(lists) && !seen[key] {
			seen[key] = true
			out = append(out, rec)
		}
	}
	return out
}
