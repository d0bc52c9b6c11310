// result.go decodes the model's reply into a typed AIQueryResult.
//
// The reply is required to be a JSON object with exactly three fields:
// sql, explanation and chartSpec. Models wrap JSON in markdown fences
// or narrative text, so the object is extracted before decoding.
package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChartSpec is the model's declared intent for visualizing the result.
// It is trusted only after the chart mapper cross-checks dataKey and
// labelKey against the actual result columns.
type ChartSpec struct {
	Type     string `json:"type"` // "bar", "line", "pie", "doughnut", "table"
	Title    string `json:"title"`
	XLabel   string `json:"xLabel,omitempty"`
	YLabel   string `json:"yLabel,omitempty"`
	DataKey  string `json:"dataKey"`
	LabelKey string `json:"labelKey"`
}

// AIQueryResult is the decoded reply. SQL is raw, untrusted text until
// the sandbox approves it. Params is bound by the orchestrator, with
// the tenant key always at position 0.
type AIQueryResult struct {
	SQL         string     `json:"sql"`
	Explanation string     `json:"explanation"`
	ChartSpec   *ChartSpec `json:"chartSpec"`
	Params      []any      `json:"-"`
}

// ParseQueryResult extracts and strictly decodes the JSON object in the
// model's reply. Malformed JSON, unknown fields, or a missing/empty sql
// field all fail.
func ParseQueryResult(response string) (*AIQueryResult, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON object found in AI response")
	}

	var result AIQueryResult
	dec := json.NewDecoder(strings.NewReader(jsonStr))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("decode AI response: %w", err)
	}

	if strings.TrimSpace(result.SQL) == "" {
		return nil, fmt.Errorf("AI response has no sql field")
	}

	if result.ChartSpec != nil {
		result.ChartSpec.Type = strings.ToLower(strings.TrimSpace(result.ChartSpec.Type))
	}
	return &result, nil
}

// extractJSON finds the JSON object in the reply text, preferring a
// ```json fence, then any fenced block that starts with "{", then the
// first balanced {...} group.
func extractJSON(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		start := idx + len("```json")
		if end := strings.Index(text[start:], "```"); end >= 0 {
			return strings.TrimSpace(text[start : start+end])
		}
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		start := idx + len("```")
		if end := strings.Index(text[start:], "```"); end >= 0 {
			candidate := strings.TrimSpace(text[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	depth := 0
	start := -1
	for i, ch := range text {
		if ch == '{' {
			if depth == 0 {
				start = i
			}
			depth++
		} else if ch == '}' {
			depth--
			if depth == 0 && start >= 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
