package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quorumhq/quorum/pkg/models"
)

// Generator produces free-text worker replies from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SupportWorker answers conversational tasks through the inference service.
// Its replies carry a structured "needs" marker when it cannot answer
// without data it does not have; the engine reacts to the marker, the
// worker itself never fetches data.
type SupportWorker struct {
	id  string
	gen Generator
}

// NewSupportWorker wraps a generator as a worker adapter.
func NewSupportWorker(id string, gen Generator) *SupportWorker {
	return &SupportWorker{id: id, gen: gen}
}

// ID returns the worker identifier.
func (w *SupportWorker) ID() string {
	return w.id
}

// Invoke generates a reply for the task's query, threading in any context
// from earlier tasks. The payload holds the reply text and, when present,
// the structured needs marker.
func (w *SupportWorker) Invoke(ctx context.Context, task *models.Task) (map[string]any, error) {
	query, _ := task.Input["query"].(string)
	if query == "" {
		return nil, NewAgentError(KindValidation, "missing_query", "support task has no query")
	}

	prompt := buildSupportPrompt(task.Input)
	text, err := w.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, Classify(err)
	}

	reply, needs := ParseStructuredReply(text)
	if reply == "" {
		return nil, NewAgentError(KindMalformed, "empty_reply", "support worker returned an empty reply")
	}

	payload := map[string]any{"reply": reply}
	if len(needs) > 0 {
		payload["needs"] = needs
	}
	return payload, nil
}

func buildSupportPrompt(input map[string]any) string {
	query, _ := input["query"].(string)

	var b strings.Builder
	b.WriteString("You are a customer service support agent.\n")
	if input["priority"] == string(models.PriorityHigh) {
		b.WriteString("This request is flagged high priority. Address it with urgency.\n")
	}
	if ctx, ok := input["context"]; ok && ctx != nil {
		enc, err := json.Marshal(ctx)
		if err == nil {
			b.WriteString("Relevant customer data:\n")
			b.Write(enc)
			b.WriteString("\n")
		}
	} else {
		b.WriteString("If you cannot answer without customer account data, reply with JSON ")
		b.WriteString(`{"reply": "...", "needs": ["customer_data"]}.` + "\n")
	}
	b.WriteString("Otherwise reply with JSON {\"reply\": \"...\"}.\n\n")
	b.WriteString(fmt.Sprintf("Customer query: %s", query))
	return b.String()
}

// structuredReply is the JSON shape the inference layer is asked to emit.
type structuredReply struct {
	Reply string   `json:"reply"`
	Needs []string `json:"needs"`
}

// ParseStructuredReply extracts the reply text and needs marker from model
// output. Output that is not the expected JSON object is treated as a plain
// reply with no needs; branching never depends on free-text sniffing.
func ParseStructuredReply(text string) (string, []string) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var sr structuredReply
		if err := json.Unmarshal([]byte(text[start:end+1]), &sr); err == nil && sr.Reply != "" {
			return sr.Reply, sr.Needs
		}
	}
	return strings.TrimSpace(text), nil
}
