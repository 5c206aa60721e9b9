package models

// TaskType categorizes what kind of coordination a request needs.
type TaskType string

const (
	// TaskTypeDataRetrieval is a lookup answered by the data worker alone.
	TaskTypeDataRetrieval TaskType = "data_retrieval"
	// TaskTypeSupport is a conversational request handled by the support worker.
	TaskTypeSupport TaskType = "support"
	// TaskTypeComplexMultiStep needs several data fetches merged before answering.
	TaskTypeComplexMultiStep TaskType = "complex_multi_step"
	// TaskTypeEscalation is an urgent request flagged for priority handling.
	TaskTypeEscalation TaskType = "escalation"
	// TaskTypeMultiIntent bundles several independent intents in one query.
	TaskTypeMultiIntent TaskType = "multi_intent"
)

// Valid returns true if the task type is a known value.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeDataRetrieval, TaskTypeSupport, TaskTypeComplexMultiStep,
		TaskTypeEscalation, TaskTypeMultiIntent:
		return true
	default:
		return false
	}
}

// Aggregation names how results from multiple data tasks combine.
type Aggregation string

const (
	// AggregationUnion keeps every record seen by any data task.
	AggregationUnion Aggregation = "union"
	// AggregationIntersection keeps only records seen by all data tasks.
	AggregationIntersection Aggregation = "intersection"
)

// Priority marks urgency declared by the classifier, not inferred downstream.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Classification is the classifier's verdict on a request.
// Produced once per request and immutable afterwards.
type Classification struct {
	// TaskType is the coordination category for this request.
	TaskType TaskType `json:"task_type"`
	// TargetWorkers lists candidate worker IDs in preference order.
	// The plan builder picks the first worker that can serve a capability.
	TargetWorkers []string `json:"target_workers,omitempty"`
	// Entities maps extracted slot names to values (e.g. customer_id).
	Entities map[string]string `json:"entities,omitempty"`
	// Priority is the declared urgency of the request.
	Priority Priority `json:"priority,omitempty"`
	// Aggregation applies to complex_multi_step plans.
	Aggregation Aggregation `json:"aggregation,omitempty"`
	// Intents holds one leaf classification per detected intent when
	// TaskType is multi_intent. Empty otherwise.
	Intents []Classification `json:"intents,omitempty"`
	// Reasoning is the classifier's short explanation, kept for traces.
	Reasoning string `json:"reasoning,omitempty"`
}
