package inference

import (
	"context"
	"regexp"
	"strings"

	"github.com/quorumhq/quorum/pkg/models"
)

// KeywordProvider classifies with keyword analysis instead of a model call.
// It backs demo mode and any deployment without inference credentials, and
// emits the same structured contract as the model providers so nothing
// downstream can tell the difference.
type KeywordProvider struct{}

// NewKeywordProvider returns the offline provider.
func NewKeywordProvider() *KeywordProvider {
	return &KeywordProvider{}
}

var customerIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)customer\s*(?:id\s*)?#?\s*(\d+)`),
	regexp.MustCompile(`(?i)\bid\s*#?\s*(\d+)`),
	regexp.MustCompile(`#(\d+)`),
}

// extractCustomerID pulls a numeric customer reference out of the query.
func extractCustomerID(text string) (string, bool) {
	for _, re := range customerIDPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

var (
	cancellationWords = []string{"cancel", "terminate", "close my account", "close account", "leaving"}
	dataWords         = []string{"get ", "show ", "list ", "find ", "look up", "lookup", "fetch", "information", "info", "record", "records", "details"}
	supportWords      = []string{"how ", "why ", "help", "explain", "policy", "question", "change my", "reset", "upgrade", "downgrade", "refund", "bill"}
	multiStepWords    = []string{"history", "summarize", "summary", "full picture", "everything about", "and their", "along with"}
)

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// Classify analyzes the query with keyword rules.
func (p *KeywordProvider) Classify(_ context.Context, text string) (models.Classification, error) {
	lower := strings.ToLower(text)

	c := models.Classification{
		Priority:  models.PriorityNormal,
		Reasoning: "keyword analysis",
	}
	if id, ok := extractCustomerID(text); ok {
		c.Entities = map[string]string{"customer_id": id}
	}

	switch {
	case containsAny(lower, cancellationWords):
		c.TaskType = models.TaskTypeEscalation
		c.Priority = models.PriorityHigh

	case containsAny(lower, multiStepWords) && c.Entities != nil:
		c.TaskType = models.TaskTypeComplexMultiStep
		c.Aggregation = models.AggregationUnion

	case isMultiIntent(lower):
		c.TaskType = models.TaskTypeMultiIntent
		dataPart := models.Classification{
			TaskType:  models.TaskTypeDataRetrieval,
			Priority:  models.PriorityNormal,
			Entities:  c.Entities,
			Reasoning: "data half of a compound query",
		}
		supportPart := models.Classification{
			TaskType:  models.TaskTypeSupport,
			Priority:  models.PriorityNormal,
			Entities:  c.Entities,
			Reasoning: "support half of a compound query",
		}
		c.Entities = nil
		c.Intents = []models.Classification{dataPart, supportPart}

	case containsAny(lower, dataWords) && (c.Entities != nil || strings.Contains(lower, "customer")):
		c.TaskType = models.TaskTypeDataRetrieval
		if strings.Contains(lower, "active") {
			if c.Entities == nil {
				c.Entities = map[string]string{}
			}
			c.Entities["status"] = "active"
		}

	default:
		c.TaskType = models.TaskTypeSupport
	}

	return c, nil
}

// isMultiIntent detects a compound query carrying both a data request and
// a conversational request joined by a conjunction.
func isMultiIntent(lower string) bool {
	if !strings.Contains(lower, " and ") && !strings.Contains(lower, " also ") {
		return false
	}
	return containsAny(lower, dataWords) && containsAny(lower, supportWords)
}

// Generate produces a deterministic structured reply so the offline
// provider exercises the same response contract as the model providers.
func (p *KeywordProvider) Generate(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "Relevant customer data:") {
		return `{"reply": "Here is what I found on the account, and how it answers your question: the details above cover the records you asked about."}`, nil
	}
	lower := strings.ToLower(prompt)
	if strings.Contains(lower, "my account") || strings.Contains(lower, "my bill") ||
		strings.Contains(lower, "was my") || strings.Contains(lower, "my plan") {
		return `{"reply": "I need to check your account before I can answer that.", "needs": ["customer_data"]}`, nil
	}
	return `{"reply": "Happy to help. Here is a general answer to your question based on our standard policies."}`, nil
}
