package worker

import (
	"context"

	"github.com/quorumhq/quorum/pkg/models"
)

// Classifier turns raw request text into an intent classification.
type Classifier interface {
	Classify(ctx context.Context, text string) (models.Classification, error)
}

// ClassifierWorker exposes intent classification through the same adapter
// contract as every other worker, so classification calls are traced and
// time-bounded like any remote call.
type ClassifierWorker struct {
	id  string
	cls Classifier
}

// NewClassifierWorker wraps a classifier as a worker adapter.
func NewClassifierWorker(id string, cls Classifier) *ClassifierWorker {
	return &ClassifierWorker{id: id, cls: cls}
}

// ID returns the worker identifier.
func (w *ClassifierWorker) ID() string {
	return w.id
}

// Invoke classifies the task's query text. The typed classification rides
// in the payload under "classification".
func (w *ClassifierWorker) Invoke(ctx context.Context, task *models.Task) (map[string]any, error) {
	query, _ := task.Input["query"].(string)
	if query == "" {
		return nil, NewAgentError(KindValidation, "missing_query", "classification task has no query")
	}

	c, err := w.cls.Classify(ctx, query)
	if err != nil {
		return nil, Classify(err)
	}
	if !c.TaskType.Valid() {
		return nil, NewAgentError(KindMalformed, "bad_task_type", "classifier returned unknown task type")
	}

	return map[string]any{
		"classification": c,
		"task_type":      string(c.TaskType),
	}, nil
}
