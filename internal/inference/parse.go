package inference

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quorumhq/quorum/pkg/models"
)

// classificationWire tolerates the loose value types models emit (numeric
// entity values, missing fields) before mapping onto the typed model.
type classificationWire struct {
	TaskType      string               `json:"task_type"`
	TargetWorkers []string             `json:"target_workers"`
	Entities      map[string]any       `json:"entities"`
	Priority      string               `json:"priority"`
	Aggregation   string               `json:"aggregation"`
	Intents       []classificationWire `json:"intents"`
	Reasoning     string               `json:"reasoning"`
}

func (w classificationWire) toModel() (models.Classification, error) {
	c := models.Classification{
		TaskType:      models.TaskType(w.TaskType),
		TargetWorkers: w.TargetWorkers,
		Priority:      models.Priority(w.Priority),
		Aggregation:   models.Aggregation(w.Aggregation),
		Reasoning:     w.Reasoning,
	}
	if !c.TaskType.Valid() {
		return c, fmt.Errorf("unknown task type %q", w.TaskType)
	}
	if c.Priority == "" {
		c.Priority = models.PriorityNormal
	}
	if len(w.Entities) > 0 {
		c.Entities = make(map[string]string, len(w.Entities))
		for k, v := range w.Entities {
			switch val := v.(type) {
			case string:
				c.Entities[k] = val
			case float64:
				c.Entities[k] = fmt.Sprintf("%.0f", val)
			default:
				c.Entities[k] = fmt.Sprint(val)
			}
		}
	}
	for _, sub := range w.Intents {
		subModel, err := sub.toModel()
		if err != nil {
			return c, err
		}
		c.Intents = append(c.Intents, subModel)
	}
	return c, nil
}

// ParseClassification extracts the JSON classification object from model
// output, which may be wrapped in prose or a code fence.
func ParseClassification(text string) (models.Classification, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return models.Classification{}, fmt.Errorf("no JSON object in classifier output")
	}

	var wire classificationWire
	if err := json.Unmarshal([]byte(text[start:end+1]), &wire); err != nil {
		return models.Classification{}, fmt.Errorf("parse classification: %w", err)
	}
	return wire.toModel()
}
