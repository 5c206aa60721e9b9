package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quorumhq/quorum/internal/planner"
	"github.com/quorumhq/quorum/internal/worker"
	"github.com/quorumhq/quorum/pkg/models"
)

// scriptedAdapter plays back a scripted response per call, counting calls.
type scriptedAdapter struct {
	id string
	fn func(call int, task *models.Task) (map[string]any, error)

	mu    sync.Mutex
	calls int
}

func (a *scriptedAdapter) ID() string { return a.id }

func (a *scriptedAdapter) Invoke(ctx context.Context, task *models.Task) (map[string]any, error) {
	a.mu.Lock()
	a.calls++
	n := a.calls
	a.mu.Unlock()
	return a.fn(n, task)
}

func (a *scriptedAdapter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type stubDirectory map[string][]string

func (d stubDirectory) WorkersFor(capability string) []string { return d[capability] }

func testDirectory() stubDirectory {
	return stubDirectory{
		planner.CapabilityData:    {"data-worker"},
		planner.CapabilitySupport: {"support-worker"},
	}
}

// classifierFor returns a classifier adapter that always produces the
// given verdict.
func classifierFor(c models.Classification) *scriptedAdapter {
	return &scriptedAdapter{
		id: "classifier",
		fn: func(int, *models.Task) (map[string]any, error) {
			return map[string]any{
				"classification": c,
				"task_type":      string(c.TaskType),
			}, nil
		},
	}
}

func replyAdapter(id, reply string) *scriptedAdapter {
	return &scriptedAdapter{
		id: id,
		fn: func(int, *models.Task) (map[string]any, error) {
			return map[string]any{"reply": reply}, nil
		},
	}
}

func fastOptions() Options {
	return Options{
		MaxRetries:     2,
		BackoffBase:    time.Millisecond,
		GlobalDeadline: 5 * time.Second,
		WorkerTimeout:  time.Second,
	}
}

func newTestEngine(t *testing.T, c models.Classification, opts Options, workers ...worker.Adapter) *Engine {
	t.Helper()
	eng, err := New(Config{
		Classifier:   classifierFor(c),
		Workers:      workers,
		AggregatorID: "aggregator",
		Builder:      planner.NewBuilder(testDirectory()),
		Options:      opts,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func kindsOf(entries []models.TraceEntry) []models.MessageKind {
	kinds := make([]models.MessageKind, len(entries))
	for i, e := range entries {
		kinds[i] = e.Kind
	}
	return kinds
}

func requestsTo(entries []models.TraceEntry, workerID string) int {
	n := 0
	for _, e := range entries {
		if e.Kind == models.KindRequest && e.To == workerID {
			n++
		}
	}
	return n
}

func TestHandleDataRetrievalSuccess(t *testing.T) {
	c := models.Classification{
		TaskType:      models.TaskTypeDataRetrieval,
		TargetWorkers: []string{"data-worker"},
		Entities:      map[string]string{"customer_id": "5"},
		Priority:      models.PriorityNormal,
	}
	data := &scriptedAdapter{id: "data-worker", fn: func(_ int, task *models.Task) (map[string]any, error) {
		if task.Input["operation"] != "get_record" {
			t.Errorf("operation = %v, want get_record", task.Input["operation"])
		}
		if task.Input["record_id"] != "5" {
			t.Errorf("record_id = %v, want 5", task.Input["record_id"])
		}
		return map[string]any{"record": map[string]any{"id": 5, "name": "Charlie Brown", "plan": "basic"}}, nil
	}}
	agg := replyAdapter("aggregator", "Charlie Brown is on the basic plan.")

	eng := newTestEngine(t, c, fastOptions(), data, agg)
	out, err := eng.Handle(context.Background(), "Get customer information for ID 5")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if out.Status != models.StatusSuccess {
		t.Errorf("status = %s, want %s", out.Status, models.StatusSuccess)
	}
	if out.FinalResponse != "Charlie Brown is on the basic plan." {
		t.Errorf("final response = %q", out.FinalResponse)
	}
	if len(out.Trace) != 7 {
		t.Fatalf("trace has %d entries, want 7: %v", len(out.Trace), kindsOf(out.Trace))
	}
	wantKinds := []models.MessageKind{
		models.KindRequest, models.KindResponse, // classifier
		models.KindRequest, models.KindResponse, // data worker
		models.KindRequest, models.KindResponse, // aggregator
		models.KindFinalResponse,
	}
	for i, want := range wantKinds {
		if out.Trace[i].Kind != want {
			t.Errorf("entry %d kind = %s, want %s", i, out.Trace[i].Kind, want)
		}
		if out.Trace[i].Step != i+1 {
			t.Errorf("entry %d step = %d, want %d", i, out.Trace[i].Step, i+1)
		}
	}
	if out.Trace[2].To != "data-worker" {
		t.Errorf("entry 2 to = %s, want data-worker", out.Trace[2].To)
	}
	last := out.Trace[len(out.Trace)-1]
	if last.From != engineName || last.To != "caller" {
		t.Errorf("final entry routed %s -> %s", last.From, last.To)
	}
}

func TestHandleSupportReplyIsFinal(t *testing.T) {
	c := models.Classification{TaskType: models.TaskTypeSupport, Priority: models.PriorityNormal}
	support := replyAdapter("support-worker", "Reset your password from the settings page.")
	agg := replyAdapter("aggregator", "unused")

	eng := newTestEngine(t, c, fastOptions(), support, agg)
	out, err := eng.Handle(context.Background(), "How do I reset my password?")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if out.Status != models.StatusSuccess {
		t.Errorf("status = %s", out.Status)
	}
	if out.FinalResponse != "Reset your password from the settings page." {
		t.Errorf("final response = %q", out.FinalResponse)
	}
	if agg.callCount() != 0 {
		t.Errorf("aggregator ran %d times, the support reply should stand as final", agg.callCount())
	}
	if len(out.Trace) != 5 {
		t.Errorf("trace has %d entries, want 5: %v", len(out.Trace), kindsOf(out.Trace))
	}
}

func TestHandleRetriesTimeoutThenFails(t *testing.T) {
	c := models.Classification{
		TaskType: models.TaskTypeDataRetrieval,
		Entities: map[string]string{"customer_id": "5"},
		Priority: models.PriorityNormal,
	}
	data := &scriptedAdapter{id: "data-worker", fn: func(int, *models.Task) (map[string]any, error) {
		return nil, worker.NewAgentError(worker.KindTimeout, "timeout", "worker did not answer in time")
	}}
	agg := replyAdapter("aggregator", "unused")

	eng := newTestEngine(t, c, fastOptions(), data, agg)
	out, err := eng.Handle(context.Background(), "Get customer information for ID 5")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if data.callCount() != 3 {
		t.Errorf("data worker called %d times, want 3 (initial + 2 retries)", data.callCount())
	}
	if got := requestsTo(out.Trace, "data-worker"); got != 3 {
		t.Errorf("trace carries %d REQUEST entries to data-worker, want 3", got)
	}
	if out.Status != models.StatusFailed {
		t.Errorf("status = %s, want %s", out.Status, models.StatusFailed)
	}
	if out.FinalResponse != failedNote {
		t.Errorf("final response = %q", out.FinalResponse)
	}
	last := out.Trace[len(out.Trace)-1]
	if last.Kind != models.KindFinalResponse {
		t.Errorf("trace must still end with FINAL_RESPONSE, got %s", last.Kind)
	}
}

func TestHandleRetryRecovers(t *testing.T) {
	c := models.Classification{
		TaskType: models.TaskTypeDataRetrieval,
		Entities: map[string]string{"customer_id": "5"},
		Priority: models.PriorityNormal,
	}
	data := &scriptedAdapter{id: "data-worker", fn: func(call int, _ *models.Task) (map[string]any, error) {
		if call == 1 {
			return nil, worker.NewAgentError(worker.KindTransport, "conn_reset", "connection reset")
		}
		return map[string]any{"record": map[string]any{"id": 5}}, nil
	}}
	agg := replyAdapter("aggregator", "Found it.")

	eng := newTestEngine(t, c, fastOptions(), data, agg)
	out, err := eng.Handle(context.Background(), "Get customer 5")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if out.Status != models.StatusSuccess {
		t.Errorf("status = %s, want %s", out.Status, models.StatusSuccess)
	}
	if data.callCount() != 2 {
		t.Errorf("data worker called %d times, want 2", data.callCount())
	}
}

func TestHandleValidationErrorIsNotRetried(t *testing.T) {
	c := models.Classification{
		TaskType: models.TaskTypeDataRetrieval,
		Entities: map[string]string{"customer_id": "oops"},
		Priority: models.PriorityNormal,
	}
	data := &scriptedAdapter{id: "data-worker", fn: func(int, *models.Task) (map[string]any, error) {
		return nil, worker.NewAgentError(worker.KindValidation, "bad_id", "record_id must be numeric")
	}}
	agg := replyAdapter("aggregator", "unused")

	eng := newTestEngine(t, c, fastOptions(), data, agg)
	out, err := eng.Handle(context.Background(), "Get customer oops")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if data.callCount() != 1 {
		t.Errorf("data worker called %d times, validation errors must not retry", data.callCount())
	}
	if out.Status != models.StatusFailed {
		t.Errorf("status = %s, want %s", out.Status, models.StatusFailed)
	}
}

func TestHandleTraceDeterminism(t *testing.T) {
	run := func() []models.TraceEntry {
		c := models.Classification{
			TaskType: models.TaskTypeDataRetrieval,
			Entities: map[string]string{"customer_id": "5"},
			Priority: models.PriorityNormal,
		}
		data := &scriptedAdapter{id: "data-worker", fn: func(int, *models.Task) (map[string]any, error) {
			return map[string]any{"record": map[string]any{"id": 5, "name": "Charlie Brown"}}, nil
		}}
		agg := replyAdapter("aggregator", "Charlie Brown, customer 5.")
		eng := newTestEngine(t, c, fastOptions(), data, agg)
		out, err := eng.Handle(context.Background(), "Get customer information for ID 5")
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		return out.Trace
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("trace lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.Step != b.Step || a.From != b.From || a.To != b.To || a.Kind != b.Kind || a.Content != b.Content {
			t.Errorf("entry %d differs between runs:\n  %+v\n  %+v", i, a, b)
		}
	}
}

func TestHandleMultiIntentBranches(t *testing.T) {
	c := models.Classification{
		TaskType: models.TaskTypeMultiIntent,
		Priority: models.PriorityNormal,
		Intents: []models.Classification{
			{
				TaskType: models.TaskTypeDataRetrieval,
				Entities: map[string]string{"customer_id": "5"},
				Priority: models.PriorityNormal,
			},
			{TaskType: models.TaskTypeSupport, Priority: models.PriorityNormal},
		},
	}
	data := &scriptedAdapter{id: "data-worker", fn: func(int, *models.Task) (map[string]any, error) {
		return map[string]any{"record": map[string]any{"id": 5}}, nil
	}}
	support := replyAdapter("support-worker", "Billing questions go to the billing page.")

	var aggMu sync.Mutex
	var aggContext map[string]any
	agg := &scriptedAdapter{id: "aggregator", fn: func(_ int, task *models.Task) (map[string]any, error) {
		aggMu.Lock()
		aggContext, _ = task.Input["context"].(map[string]any)
		aggMu.Unlock()
		return map[string]any{"reply": "Here is your record, and your billing answer."}, nil
	}}

	eng := newTestEngine(t, c, fastOptions(), data, support, agg)
	out, err := eng.Handle(context.Background(), "Get my record and also explain my bill")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if out.Status != models.StatusSuccess {
		t.Errorf("status = %s, want %s", out.Status, models.StatusSuccess)
	}
	if len(out.Trace) != 9 {
		t.Errorf("trace has %d entries, want 9: %v", len(out.Trace), kindsOf(out.Trace))
	}
	for i, e := range out.Trace {
		if e.Step != i+1 {
			t.Fatalf("entry %d step = %d, branches must share one gapless sequence", i, e.Step)
		}
	}

	aggMu.Lock()
	defer aggMu.Unlock()
	if aggContext == nil {
		t.Fatal("aggregator received no context")
	}
	for _, id := range []string{"i1-task-1", "i2-task-1"} {
		if _, ok := aggContext[id]; !ok {
			t.Errorf("aggregator context misses result of %s", id)
		}
	}
}

func TestHandleNeedsMarkerExtendsPlan(t *testing.T) {
	c := models.Classification{
		TaskType: models.TaskTypeSupport,
		Entities: map[string]string{"customer_id": "5"},
		Priority: models.PriorityNormal,
	}
	support := &scriptedAdapter{id: "support-worker", fn: func(call int, task *models.Task) (map[string]any, error) {
		if call == 1 {
			return map[string]any{
				"reply": "I need the account details to answer that.",
				"needs": []string{"customer_data"},
			}, nil
		}
		if task.Input["context"] == nil {
			t.Error("follow-up support call carries no fetched context")
		}
		return map[string]any{"reply": "Your plan is basic, renewing on the 1st."}, nil
	}}
	data := &scriptedAdapter{id: "data-worker", fn: func(_ int, task *models.Task) (map[string]any, error) {
		if task.Input["operation"] != "get_record" {
			t.Errorf("delegated fetch operation = %v", task.Input["operation"])
		}
		return map[string]any{"record": map[string]any{"id": 5, "plan": "basic"}}, nil
	}}
	agg := replyAdapter("aggregator", "unused")

	eng := newTestEngine(t, c, fastOptions(), data, support, agg)
	out, err := eng.Handle(context.Background(), "What plan is my account on?")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if support.callCount() != 2 {
		t.Errorf("support worker called %d times, want 2", support.callCount())
	}
	if data.callCount() != 1 {
		t.Errorf("data worker called %d times, want 1", data.callCount())
	}
	if out.FinalResponse != "Your plan is basic, renewing on the 1st." {
		t.Errorf("final response = %q", out.FinalResponse)
	}
	if out.Status != models.StatusSuccess {
		t.Errorf("status = %s", out.Status)
	}

	delegates := 0
	for _, e := range out.Trace {
		if e.Kind == models.KindDelegate {
			delegates++
			if e.From != engineName || e.To != "data-worker" {
				t.Errorf("DELEGATE routed %s -> %s", e.From, e.To)
			}
		}
	}
	if delegates != 1 {
		t.Errorf("trace carries %d DELEGATE entries, want 1", delegates)
	}
	if len(out.Trace) != 10 {
		t.Errorf("trace has %d entries, want 10: %v", len(out.Trace), kindsOf(out.Trace))
	}
}

func TestHandleSupplementaryFailureDegrades(t *testing.T) {
	c := models.Classification{
		TaskType: models.TaskTypeComplexMultiStep,
		Entities: map[string]string{"customer_id": "5"},
		Priority: models.PriorityNormal,
	}
	data := &scriptedAdapter{id: "data-worker", fn: func(_ int, task *models.Task) (map[string]any, error) {
		if task.Input["operation"] == "get_related" {
			return nil, worker.NewAgentError(worker.KindWorker, "backend_down", "related lookup unavailable")
		}
		return map[string]any{"record": map[string]any{"id": 5, "name": "Charlie Brown"}}, nil
	}}
	support := &scriptedAdapter{id: "support-worker", fn: func(_ int, task *models.Task) (map[string]any, error) {
		if task.Input["context"] == nil {
			t.Error("support task carries no merged context")
		}
		return map[string]any{"reply": "Charlie Brown's history, as far as records go."}, nil
	}}
	agg := replyAdapter("aggregator", "unused")

	eng := newTestEngine(t, c, fastOptions(), data, support, agg)
	out, err := eng.Handle(context.Background(), "Get customer 5 and their ticket history")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if out.Status != models.StatusPartial {
		t.Errorf("status = %s, want %s", out.Status, models.StatusPartial)
	}
	if !strings.Contains(out.FinalResponse, degradedNote) {
		t.Errorf("final response carries no degradation note: %q", out.FinalResponse)
	}
	if support.callCount() != 1 {
		t.Errorf("support worker called %d times, dependents of a failed supplementary task must still run", support.callCount())
	}
}

// blockingDataAdapter answers get_record immediately and blocks get_related
// until the call context is cancelled.
type blockingDataAdapter struct{}

func (a *blockingDataAdapter) ID() string { return "data-worker" }

func (a *blockingDataAdapter) Invoke(ctx context.Context, task *models.Task) (map[string]any, error) {
	if task.Input["operation"] == "get_related" {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return map[string]any{"record": map[string]any{"id": 5, "name": "Charlie Brown"}}, nil
}

func TestHandleGlobalDeadlineYieldsPartial(t *testing.T) {
	c := models.Classification{
		TaskType: models.TaskTypeComplexMultiStep,
		Entities: map[string]string{"customer_id": "5"},
		Priority: models.PriorityNormal,
	}
	support := replyAdapter("support-worker", "unused")
	agg := replyAdapter("aggregator", "Here is what I could find in time.")

	opts := fastOptions()
	opts.GlobalDeadline = 80 * time.Millisecond

	eng := newTestEngine(t, c, opts, &blockingDataAdapter{}, support, agg)
	out, err := eng.Handle(context.Background(), "Get customer 5 and their ticket history")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if out.Status != models.StatusPartial {
		t.Errorf("status = %s, want %s", out.Status, models.StatusPartial)
	}
	if !strings.Contains(out.FinalResponse, "Here is what I could find in time.") {
		t.Errorf("final response = %q, want the best-effort aggregation", out.FinalResponse)
	}
	if agg.callCount() != 1 {
		t.Errorf("aggregator called %d times, want one best-effort run after the deadline", agg.callCount())
	}
}

func TestHandleClassifierFailure(t *testing.T) {
	bad := &scriptedAdapter{id: "classifier", fn: func(int, *models.Task) (map[string]any, error) {
		return map[string]any{"garbage": true}, nil
	}}
	agg := replyAdapter("aggregator", "unused")

	eng, err := New(Config{
		Classifier:   bad,
		Workers:      []worker.Adapter{agg},
		AggregatorID: "aggregator",
		Builder:      planner.NewBuilder(testDirectory()),
		Options:      fastOptions(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := eng.Handle(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out.Status != models.StatusFailed {
		t.Errorf("status = %s, want %s", out.Status, models.StatusFailed)
	}
	if len(out.Trace) != 3 {
		t.Errorf("trace has %d entries, want 3: %v", len(out.Trace), kindsOf(out.Trace))
	}
}

func TestHandleEscalationMarksPriority(t *testing.T) {
	c := models.Classification{
		TaskType: models.TaskTypeEscalation,
		Priority: models.PriorityHigh,
	}
	support := &scriptedAdapter{id: "support-worker", fn: func(_ int, task *models.Task) (map[string]any, error) {
		if task.Input["priority"] != string(models.PriorityHigh) {
			t.Errorf("priority = %v, want %s", task.Input["priority"], models.PriorityHigh)
		}
		return map[string]any{"reply": "I have flagged your cancellation request for a specialist."}, nil
	}}
	agg := replyAdapter("aggregator", "unused")

	eng := newTestEngine(t, c, fastOptions(), support, agg)
	out, err := eng.Handle(context.Background(), "I want to cancel my account immediately")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out.Status != models.StatusSuccess {
		t.Errorf("status = %s", out.Status)
	}
	if support.callCount() != 1 {
		t.Errorf("support worker called %d times", support.callCount())
	}
}

func TestHandleEscalationExtensionKeepsPriority(t *testing.T) {
	c := models.Classification{
		TaskType: models.TaskTypeEscalation,
		Entities: map[string]string{"customer_id": "5"},
		Priority: models.PriorityHigh,
	}
	support := &scriptedAdapter{id: "support-worker", fn: func(call int, task *models.Task) (map[string]any, error) {
		if task.Input["priority"] != string(models.PriorityHigh) {
			t.Errorf("support call %d priority = %v, want %s", call, task.Input["priority"], models.PriorityHigh)
		}
		if call == 1 {
			return map[string]any{
				"reply": "I need the account details before escalating.",
				"needs": []string{"customer_data"},
			}, nil
		}
		return map[string]any{"reply": "Escalated with the account details attached."}, nil
	}}
	data := &scriptedAdapter{id: "data-worker", fn: func(_ int, task *models.Task) (map[string]any, error) {
		if task.Input["priority"] != string(models.PriorityHigh) {
			t.Errorf("delegated fetch priority = %v, want %s", task.Input["priority"], models.PriorityHigh)
		}
		return map[string]any{"record": map[string]any{"id": 5}}, nil
	}}
	agg := replyAdapter("aggregator", "unused")

	eng := newTestEngine(t, c, fastOptions(), data, support, agg)
	out, err := eng.Handle(context.Background(), "Cancel my subscription now, I am customer 5")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if out.Status != models.StatusSuccess {
		t.Errorf("status = %s", out.Status)
	}
	if support.callCount() != 2 {
		t.Errorf("support worker called %d times, want 2", support.callCount())
	}
	if data.callCount() != 1 {
		t.Errorf("data worker called %d times, want 1", data.callCount())
	}
}

func TestHandleNegativeMaxRetriesDisablesRetry(t *testing.T) {
	c := models.Classification{
		TaskType: models.TaskTypeDataRetrieval,
		Entities: map[string]string{"customer_id": "5"},
		Priority: models.PriorityNormal,
	}
	data := &scriptedAdapter{id: "data-worker", fn: func(int, *models.Task) (map[string]any, error) {
		return nil, worker.NewAgentError(worker.KindTimeout, "timeout", "worker did not answer in time")
	}}
	agg := replyAdapter("aggregator", "unused")

	opts := fastOptions()
	opts.MaxRetries = -1
	eng := newTestEngine(t, c, opts, data, agg)
	out, err := eng.Handle(context.Background(), "Get customer 5")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if data.callCount() != 1 {
		t.Errorf("data worker called %d times, want 1 with retries disabled", data.callCount())
	}
	if out.Status != models.StatusFailed {
		t.Errorf("status = %s, want %s", out.Status, models.StatusFailed)
	}
}

func TestHandleDeadlineDuringBackoffStopsRetry(t *testing.T) {
	c := models.Classification{
		TaskType: models.TaskTypeDataRetrieval,
		Entities: map[string]string{"customer_id": "5"},
		Priority: models.PriorityNormal,
	}
	data := &scriptedAdapter{id: "data-worker", fn: func(int, *models.Task) (map[string]any, error) {
		return nil, worker.NewAgentError(worker.KindTransport, "conn_reset", "connection reset")
	}}
	agg := replyAdapter("aggregator", "unused")

	opts := Options{
		MaxRetries:     2,
		BackoffBase:    time.Second,
		GlobalDeadline: 60 * time.Millisecond,
		WorkerTimeout:  time.Second,
	}
	eng := newTestEngine(t, c, opts, data, agg)
	out, err := eng.Handle(context.Background(), "Get customer 5")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if data.callCount() != 1 {
		t.Errorf("data worker called %d times, want 1: the deadline fired during backoff", data.callCount())
	}
	if got := requestsTo(out.Trace, "data-worker"); got != 1 {
		t.Errorf("trace carries %d REQUEST entries to data-worker, want 1", got)
	}
	if out.Status != models.StatusFailed {
		t.Errorf("status = %s, want %s", out.Status, models.StatusFailed)
	}
}

func TestHandleEmitsLifecycleEvents(t *testing.T) {
	c := models.Classification{
		TaskType: models.TaskTypeDataRetrieval,
		Entities: map[string]string{"customer_id": "5"},
		Priority: models.PriorityNormal,
	}
	data := &scriptedAdapter{id: "data-worker", fn: func(int, *models.Task) (map[string]any, error) {
		return map[string]any{"record": map[string]any{"id": 5}}, nil
	}}
	agg := replyAdapter("aggregator", "Found it.")

	eng := newTestEngine(t, c, fastOptions(), data, agg)
	if _, err := eng.Handle(context.Background(), "Get customer 5"); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	var types []EventType
	for {
		select {
		case evt := <-eng.Events():
			types = append(types, evt.Type)
			continue
		default:
		}
		break
	}
	if len(types) == 0 {
		t.Fatal("no events emitted")
	}
	if types[0] != EventClassified {
		t.Errorf("first event = %s, want %s", types[0], EventClassified)
	}
	if types[len(types)-1] != EventSessionDone {
		t.Errorf("last event = %s, want %s", types[len(types)-1], EventSessionDone)
	}
	seen := make(map[EventType]bool, len(types))
	for _, typ := range types {
		seen[typ] = true
	}
	for _, want := range []EventType{EventPlanBuilt, EventTaskDispatched, EventTaskCompleted} {
		if !seen[want] {
			t.Errorf("event stream missing %s: %v", want, types)
		}
	}
}

func TestHandleOutcomeFlowMatchesTrace(t *testing.T) {
	c := models.Classification{
		TaskType: models.TaskTypeDataRetrieval,
		Entities: map[string]string{"customer_id": "5"},
		Priority: models.PriorityNormal,
	}
	data := &scriptedAdapter{id: "data-worker", fn: func(int, *models.Task) (map[string]any, error) {
		return map[string]any{"record": map[string]any{"id": 5}}, nil
	}}
	agg := replyAdapter("aggregator", "Found it.")

	eng := newTestEngine(t, c, fastOptions(), data, agg)
	out, err := eng.Handle(context.Background(), "Get customer 5")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(out.Flow) != len(out.Trace) {
		t.Fatalf("flow has %d steps, trace has %d entries", len(out.Flow), len(out.Trace))
	}
	for i, f := range out.Flow {
		e := out.Trace[i]
		if f.From != e.From || f.To != e.To || f.Kind != e.Kind {
			t.Errorf("flow step %d = %+v, trace entry = %+v", i, f, e)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	dir := testDirectory()
	agg := replyAdapter("aggregator", "x")
	cls := classifierFor(models.Classification{TaskType: models.TaskTypeSupport})

	cases := []struct {
		name string
		cfg  Config
	}{
		{"no classifier", Config{Workers: []worker.Adapter{agg}, AggregatorID: "aggregator", Builder: planner.NewBuilder(dir)}},
		{"no builder", Config{Classifier: cls, Workers: []worker.Adapter{agg}, AggregatorID: "aggregator"}},
		{"no workers", Config{Classifier: cls, AggregatorID: "aggregator", Builder: planner.NewBuilder(dir)}},
		{"unknown aggregator", Config{Classifier: cls, Workers: []worker.Adapter{agg}, AggregatorID: "missing", Builder: planner.NewBuilder(dir)}},
		{"duplicate worker", Config{Classifier: cls, Workers: []worker.Adapter{agg, replyAdapter("aggregator", "y")}, AggregatorID: "aggregator", Builder: planner.NewBuilder(dir)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
