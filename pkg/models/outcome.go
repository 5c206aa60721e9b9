package models

// SessionStatus is the overall result of one coordinated request.
type SessionStatus string

const (
	// StatusSuccess means every task completed and the answer is whole.
	StatusSuccess SessionStatus = "success"
	// StatusPartial means the answer was produced from incomplete results.
	StatusPartial SessionStatus = "partial"
	// StatusFailed means no usable answer could be produced.
	StatusFailed SessionStatus = "failed"
)

// Outcome is what the caller receives for a request: the final answer,
// the full communication trace with its condensed flow summary, and the
// overall status.
type Outcome struct {
	FinalResponse string        `json:"final_response"`
	Trace         []TraceEntry  `json:"trace"`
	Flow          []FlowStep    `json:"flow"`
	Status        SessionStatus `json:"status"`
}
