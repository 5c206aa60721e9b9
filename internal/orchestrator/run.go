package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quorumhq/quorum/internal/worker"
	"github.com/quorumhq/quorum/pkg/models"
)

// Messages surfaced to callers. Internal error detail stays in the trace;
// the final answer only ever carries human-readable text.
const (
	failedNote   = "I wasn't able to complete your request because a required step failed. Please try again or contact support directly."
	degradedNote = "Note: some of the requested information could not be retrieved, so this answer may be incomplete."
)

// Handle coordinates one request end to end and returns the final answer,
// the communication trace, and the overall status. Failures are reported
// in the outcome; the error return is reserved for engine misuse.
func (e *Engine) Handle(ctx context.Context, text string) (*models.Outcome, error) {
	req := models.NewRequest(text)
	s := newSession(req)

	ctx, cancel := context.WithTimeout(ctx, e.opts.GlobalDeadline)
	defer cancel()

	// PLANNING: classify, then build the plan.
	c, agentErr := e.classify(ctx, s)
	if agentErr != nil {
		return e.fail(s, agentErr), nil
	}
	s.classification = c
	e.logf("request %s classified as %s", req.ID, c.TaskType)
	e.emitEvent(Event{Type: EventClassified, Message: string(c.TaskType)})

	plan, err := e.builder.Build(req, c)
	if err != nil {
		e.logf("request %s: plan build failed: %v", req.ID, err)
		return e.fail(s, worker.NewAgentError(worker.KindValidation, "plan_failed", err.Error())), nil
	}
	s.plan = plan

	// Urgency is a data annotation on dispatch payloads, not a separate
	// state path.
	if c.Priority == models.PriorityHigh {
		for _, t := range plan.Tasks {
			t.Input["priority"] = string(models.PriorityHigh)
		}
	}
	e.emitEvent(Event{Type: EventPlanBuilt, Message: fmt.Sprintf("%d tasks", len(plan.Tasks))})

	// DISPATCHING / AWAITING: run each independent branch; branches share
	// no data, so they may run concurrently.
	s.setState(StateDispatching)
	branches := branchNumbers(plan)
	if len(branches) == 1 {
		e.runBranch(ctx, s, branches[0])
	} else {
		var wg sync.WaitGroup
		for _, branch := range branches {
			wg.Add(1)
			go func(branch int) {
				defer wg.Done()
				e.runBranch(ctx, s, branch)
			}(branch)
		}
		wg.Wait()
	}

	s.mu.Lock()
	failure := s.failure
	s.mu.Unlock()
	if failure != nil {
		return e.fail(s, failure), nil
	}

	// AGGREGATING: compose the final answer from completed results.
	s.setState(StateAggregating)
	answer, aggErr := e.aggregate(ctx, s)
	if aggErr != nil {
		return e.fail(s, aggErr), nil
	}

	s.mu.Lock()
	degraded := len(s.degraded) > 0
	deadline := s.deadline
	s.mu.Unlock()

	status := models.StatusSuccess
	if degraded || deadline {
		status = models.StatusPartial
		answer = answer + "\n\n" + degradedNote
	}

	s.rec.Record(engineName, "caller", models.KindFinalResponse, answer)
	s.setState(StateCompleted)
	e.logf("request %s completed with status %s", req.ID, status)
	e.emitEvent(Event{Type: EventSessionDone, Message: string(status)})

	return &models.Outcome{FinalResponse: answer, Trace: s.rec.Entries(), Flow: s.rec.Flow(), Status: status}, nil
}

// classify runs the classifier adapter and extracts the typed verdict.
func (e *Engine) classify(ctx context.Context, s *session) (models.Classification, *worker.AgentError) {
	invoker := worker.NewInvoker(e.classifier, s.rec, e.opts.timeoutFor(e.classifier.ID()))
	task := &models.Task{
		ID:       "classify",
		WorkerID: e.classifier.ID(),
		Input:    map[string]any{"query": s.req.Text},
	}
	payload, agentErr := invoker.Call(ctx, engineName, task)
	if agentErr != nil {
		return models.Classification{}, agentErr
	}
	c, ok := payload["classification"].(models.Classification)
	if !ok {
		return models.Classification{}, worker.NewAgentError(worker.KindMalformed,
			"bad_classification", "classifier payload carries no classification")
	}
	return c, nil
}

// runBranch executes one branch's tasks in dependency order until the
// branch is drained, the session fails, or the deadline cuts in.
func (e *Engine) runBranch(ctx context.Context, s *session, branch int) {
	for {
		if ctx.Err() != nil {
			s.mu.Lock()
			s.deadline = true
			s.mu.Unlock()
			return
		}
		if s.sessionFailed() {
			return
		}
		t, _ := s.nextReady(branch)
		if t == nil {
			return
		}
		e.runTask(ctx, s, t, branch)
	}
}

// runTask dispatches one task, owning the retry policy: transient
// failures re-dispatch with exponential backoff up to the bound, anything
// else surfaces immediately. Adapters themselves never retry.
func (e *Engine) runTask(ctx context.Context, s *session, t *models.Task, branch int) {
	adapter, ok := e.workers[t.WorkerID]
	if !ok {
		s.markFailed(t, worker.NewAgentError(worker.KindValidation,
			"unknown_worker", fmt.Sprintf("no adapter for worker %q", t.WorkerID)))
		return
	}
	invoker := worker.NewInvoker(adapter, s.rec, e.opts.timeoutFor(t.WorkerID))

	var payload map[string]any
	var agentErr *worker.AgentError
	for attempt := 0; ; attempt++ {
		s.markInFlight(t)
		s.setState(StateAwaiting)
		e.emitEvent(Event{Type: EventTaskDispatched, TaskID: t.ID, WorkerID: t.WorkerID})

		// Substitute prior results into the payload just before dispatch,
		// so retries and runtime-inserted tasks see current state.
		call := *t
		call.Input = s.resolveInputs(t)

		payload, agentErr = invoker.Call(ctx, engineName, &call)
		if agentErr == nil {
			break
		}
		if !agentErr.Retriable() || attempt >= e.opts.MaxRetries || ctx.Err() != nil {
			break
		}

		delay := e.opts.BackoffBase << attempt
		e.logf("task %s: %s, retrying in %s", t.ID, agentErr.Kind, delay)
		e.emitEvent(Event{Type: EventTaskRetried, TaskID: t.ID, Message: agentErr.Error()})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
		// The deadline can fire mid-backoff; never re-dispatch on a
		// dead context.
		if ctx.Err() != nil {
			break
		}
		s.setState(StateDispatching)
	}

	if agentErr != nil {
		if ctx.Err() != nil {
			// The global deadline, not the task itself, ended this call.
			// Remaining steps short-circuit and the session degrades to a
			// best-effort answer instead of failing outright.
			s.markDeadline(t, agentErr)
		} else {
			s.markFailed(t, agentErr)
		}
		e.logf("task %s failed: %v", t.ID, agentErr)
		e.emitEvent(Event{Type: EventTaskFailed, TaskID: t.ID, Message: agentErr.Error()})
		return
	}

	s.markCompleted(t, payload)
	s.setState(StateDispatching)
	e.emitEvent(Event{Type: EventTaskCompleted, TaskID: t.ID, WorkerID: t.WorkerID})

	// A support reply may declare, through the structured marker, that it
	// cannot answer without account data. The engine then delegates a data
	// fetch and a follow-up support task; the worker never fetches data.
	if needsCustomerData(payload) && t.Input["context"] == nil {
		e.extendForNeeds(s, t, branch)
	}
}

// extendForNeeds inserts the delegated data fetch and follow-up support
// task after a support reply asked for customer data.
func (e *Engine) extendForNeeds(s *session, t *models.Task, branch int) {
	s.mu.Lock()
	if s.extended[t.ID] {
		s.mu.Unlock()
		return
	}
	c := s.branchClassification(branch)
	added, err := e.builder.ExtendForNeeds(s.plan, t, c, s.req)
	if err == nil {
		s.extended[t.ID] = true
		// Runtime-inserted tasks carry the same urgency annotation the
		// initial plan got on dispatch.
		if c.Priority == models.PriorityHigh {
			for _, a := range added {
				a.Input["priority"] = string(models.PriorityHigh)
			}
		}
	} else {
		s.degraded = append(s.degraded,
			"the account data needed for a complete answer could not be located")
	}
	s.mu.Unlock()

	if err != nil {
		e.logf("task %s asked for customer data but the plan could not be extended: %v", t.ID, err)
		return
	}
	s.rec.Record(engineName, added[0].WorkerID, models.KindDelegate,
		fmt.Sprintf("fetching customer data on behalf of %s", t.WorkerID))
	e.logf("plan extended with %d tasks after %s requested customer data", len(added), t.ID)
	e.emitEvent(Event{Type: EventPlanExtended, TaskID: t.ID})
}

// aggregate produces the final answer. Single-branch plans ending in a
// completed support task already composed it; every other shape invokes
// the aggregator worker with all completed results as context.
func (e *Engine) aggregate(ctx context.Context, s *session) (string, *worker.AgentError) {
	if reply, ok := s.terminalReply(); ok {
		return reply, nil
	}

	results := s.completedResults()
	if len(results) == 0 {
		return "", worker.NewAgentError(worker.KindWorker, "no_results",
			"no task results available to aggregate")
	}

	// Past the deadline the aggregation still runs, briefly, on its own
	// budget: the caller gets a best-effort answer from what completed.
	aggCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		aggCtx, cancel = context.WithTimeout(context.Background(), e.opts.timeoutFor(e.aggregator))
		defer cancel()
	}

	invoker := worker.NewInvoker(e.workers[e.aggregator], s.rec, e.opts.timeoutFor(e.aggregator))
	task := &models.Task{
		ID:       "aggregate",
		WorkerID: e.aggregator,
		Input: map[string]any{
			"query":   s.req.Text,
			"context": results,
		},
	}
	payload, agentErr := invoker.Call(aggCtx, engineName, task)
	if agentErr != nil {
		return "", agentErr
	}
	reply, _ := payload["reply"].(string)
	if reply == "" {
		return "", worker.NewAgentError(worker.KindMalformed, "empty_reply",
			"aggregator returned no reply text")
	}
	return reply, nil
}

// fail closes the session in the absorbing FAILED state, still returning
// the trace and a human-readable note.
func (e *Engine) fail(s *session, agentErr *worker.AgentError) *models.Outcome {
	s.setState(StateFailed)
	s.rec.Record(engineName, "caller", models.KindFinalResponse, failedNote)
	e.logf("request %s failed: %v", s.req.ID, agentErr)
	e.emitEvent(Event{Type: EventSessionDone, Message: string(models.StatusFailed)})
	return &models.Outcome{
		FinalResponse: failedNote,
		Trace:         s.rec.Entries(),
		Flow:          s.rec.Flow(),
		Status:        models.StatusFailed,
	}
}

func (s *session) sessionFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure != nil
}

// markDeadline records a task cut short by the global deadline without
// failing the session.
func (s *session) markDeadline(t *models.Task, agentErr *worker.AgentError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	t.Status = models.TaskStatusFailed
	t.Error = agentErr.Error()
	t.CompletedAt = &now
	s.deadline = true
}

// branchNumbers returns the distinct branch indices in ascending order.
func branchNumbers(plan *models.Plan) []int {
	seen := make(map[int]bool)
	var out []int
	for _, t := range plan.Tasks {
		if !seen[t.Branch] {
			seen[t.Branch] = true
			out = append(out, t.Branch)
		}
	}
	sort.Ints(out)
	return out
}
