package inference

import "fmt"

// classifySystemPrompt instructs the model to emit the structured intent
// contract. Branching downstream depends only on these fields, never on
// free-text sniffing.
const classifySystemPrompt = `You are the intent classifier for a customer service orchestrator.
Given a customer query, respond with a single JSON object and nothing else:

{
  "task_type": "data_retrieval" | "support" | "complex_multi_step" | "escalation" | "multi_intent",
  "target_workers": ["worker ids in preference order, may be empty"],
  "entities": {"customer_id": "5"},
  "priority": "normal" | "high",
  "aggregation": "union" | "intersection",
  "intents": [ /* one object of this same shape per intent, only for multi_intent */ ],
  "reasoning": "one short sentence"
}

Rules:
- data_retrieval: the query only asks for stored customer or ticket data.
- support: the query needs a conversational answer.
- complex_multi_step: the query needs several data fetches combined before answering; set "aggregation".
- escalation: the customer threatens to cancel or is urgent; set priority to "high".
- multi_intent: the query bundles independent requests; list each in "intents" and leave top-level entities empty.
- Extract customer_id whenever a numeric customer reference appears.
- Omit fields that do not apply rather than inventing values.`

func classifyUserPrompt(query string) string {
	return fmt.Sprintf("Customer query: %s", query)
}
