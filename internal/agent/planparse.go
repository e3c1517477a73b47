package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type rawPlan struct {
	Steps []rawStep `json:"steps"`
}

type rawStep struct {
	ID          json.RawMessage `json:"id"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	Files       []string        `json:"files"`
}

// ExtractPlan looks for a JSON object spanning from the first '{' to the
// last '}' of text and reads it as {"steps": [...]}. Steps without an id are
// numbered "step-N". It returns nil when no usable plan is found.
func ExtractPlan(taskID, text string) *Plan {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}

	var raw rawPlan
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil
	}
	if len(raw.Steps) == 0 {
		return nil
	}

	plan := &Plan{
		TaskID:    taskID,
		Steps:     make([]*Step, 0, len(raw.Steps)),
		CreatedAt: time.Now(),
	}
	for i, rs := range raw.Steps {
		id := stepID(rs.ID)
		if id == "" {
			id = fmt.Sprintf("step-%d", i+1)
		}
		plan.Steps = append(plan.Steps, &Step{
			ID:          id,
			Action:      rs.Action,
			Description: rs.Description,
			Files:       rs.Files,
			Status:      StepPending,
		})
	}
	return plan
}

// stepID accepts ids written as strings or numbers.
func stepID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
