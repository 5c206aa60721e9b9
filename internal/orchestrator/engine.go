package orchestrator

import (
	"fmt"
	"log"
	"time"

	"github.com/quorumhq/quorum/internal/planner"
	"github.com/quorumhq/quorum/internal/worker"
)

// State names the engine's position in a request's lifecycle.
type State string

const (
	StatePlanning    State = "PLANNING"
	StateDispatching State = "DISPATCHING"
	StateAwaiting    State = "AWAITING"
	StateAggregating State = "AGGREGATING"
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
)

// engineName is how the engine identifies itself in traces.
const engineName = "orchestrator"

// Options tune the engine's retry and deadline policy.
type Options struct {
	// MaxRetries bounds re-dispatches of a task after transient failures.
	// Zero takes the default; a negative value disables retries.
	MaxRetries int
	// BackoffBase is the first retry delay; each retry doubles it.
	BackoffBase time.Duration
	// GlobalDeadline bounds one whole request.
	GlobalDeadline time.Duration
	// WorkerTimeout bounds a single worker call.
	WorkerTimeout time.Duration
	// WorkerTimeouts overrides WorkerTimeout per worker ID.
	WorkerTimeouts map[string]time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:     2,
		BackoffBase:    500 * time.Millisecond,
		GlobalDeadline: 2 * time.Minute,
		WorkerTimeout:  worker.DefaultTimeout,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxRetries == 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.BackoffBase == 0 {
		o.BackoffBase = d.BackoffBase
	}
	if o.GlobalDeadline == 0 {
		o.GlobalDeadline = d.GlobalDeadline
	}
	if o.WorkerTimeout == 0 {
		o.WorkerTimeout = d.WorkerTimeout
	}
	return o
}

// timeoutFor returns the per-call timeout for one worker.
func (o Options) timeoutFor(workerID string) time.Duration {
	if t, ok := o.WorkerTimeouts[workerID]; ok && t > 0 {
		return t
	}
	return o.WorkerTimeout
}

// Config assembles an engine.
type Config struct {
	// Classifier serves intent classification.
	Classifier worker.Adapter
	// Workers are the specialist adapters, keyed by their IDs.
	Workers []worker.Adapter
	// AggregatorID names the worker that composes final answers. It must
	// be one of Workers.
	AggregatorID string
	// Builder constructs task plans.
	Builder *planner.Builder
	// Options tune retry and deadline policy; zero values take defaults.
	Options Options
}

// Engine is the coordination state machine. One engine serves many
// requests; all per-request state lives in the session, so no locking is
// shared across requests.
type Engine struct {
	classifier worker.Adapter
	workers    map[string]worker.Adapter
	aggregator string
	builder    *planner.Builder
	opts       Options
	events     chan Event
	logger     *log.Logger
}

// New builds an engine from config.
func New(cfg Config) (*Engine, error) {
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("engine needs a classifier adapter")
	}
	if cfg.Builder == nil {
		return nil, fmt.Errorf("engine needs a plan builder")
	}
	if len(cfg.Workers) == 0 {
		return nil, fmt.Errorf("engine needs at least one worker adapter")
	}

	workers := make(map[string]worker.Adapter, len(cfg.Workers))
	for _, w := range cfg.Workers {
		if _, dup := workers[w.ID()]; dup {
			return nil, fmt.Errorf("duplicate worker adapter %q", w.ID())
		}
		workers[w.ID()] = w
	}
	if _, ok := workers[cfg.AggregatorID]; !ok {
		return nil, fmt.Errorf("aggregator %q is not a registered worker", cfg.AggregatorID)
	}

	return &Engine{
		classifier: cfg.Classifier,
		workers:    workers,
		aggregator: cfg.AggregatorID,
		builder:    cfg.Builder,
		opts:       cfg.Options.withDefaults(),
		events:     make(chan Event, 64),
		logger:     log.New(log.Writer(), "", log.LstdFlags),
	}, nil
}

func (e *Engine) logf(format string, args ...any) {
	e.logger.Printf("[orchestrator] "+format, args...)
}
