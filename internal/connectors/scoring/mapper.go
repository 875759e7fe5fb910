package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ScoreResult is the uniform display model for one scored transaction.
type ScoreResult struct {
	TransactionSeq  any            `json:"transaction_seq"`
	Score           *float64       `json:"score"`
	Decision        string         `json:"decision"`
	ThresholdLow    *float64       `json:"threshold_low"`
	ThresholdHigh   *float64       `json:"threshold_high"`
	ModelVersion    string         `json:"model_version,omitempty"`
	RegistryVersion string         `json:"registry_version,omitempty"`
	Reasons         []Reason       `json:"reasons"`
	Raw             map[string]any `json:"raw"`
}

// BatchResult is the uniform display model for a batch scoring response.
type BatchResult struct {
	Count           int64          `json:"count"`
	ThresholdLow    *float64       `json:"threshold_low"`
	ThresholdHigh   *float64       `json:"threshold_high"`
	ModelVersion    string         `json:"model_version,omitempty"`
	RegistryVersion string         `json:"registry_version,omitempty"`
	Results         []ScoreResult  `json:"results"`
	Raw             map[string]any `json:"raw,omitempty"`
}

// Reason is one normalized model-explanation entry.
type Reason struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Impact      *float64 `json:"impact"`
	Direction   string   `json:"direction,omitempty"`
	Raw         any      `json:"raw,omitempty"`
}

// HealthStatus summarizes the upstream /health response.
type HealthStatus struct {
	Status          string         `json:"status"`
	ModelVersion    string         `json:"model_version,omitempty"`
	RegistryVersion string         `json:"registry_version,omitempty"`
	Alias           string         `json:"alias,omitempty"`
	ThresholdLow    *float64       `json:"threshold_low,omitempty"`
	ThresholdHigh   *float64       `json:"threshold_high,omitempty"`
	Raw             map[string]any `json:"raw,omitempty"`
}

// DecisionMeta is a display tag for a scoring decision.
type DecisionMeta struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// UnwrapEnvelope strips one level of response wrapping: a data object wins,
// then a result value, then the response itself. It never recurses.
func UnwrapEnvelope(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if data, ok := m["data"].(map[string]any); ok {
		return data
	}
	if result, ok := m["result"]; ok && result != nil {
		return result
	}
	return v
}

// MapScoreResult reshapes one unwrapped score object into a ScoreResult.
// Returns nil when the input is not an object.
func MapScoreResult(v any) *ScoreResult {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	out := &ScoreResult{
		Score:           asFloatPtr(m["score"]),
		Decision:        firstString(m, "decision", "outcome"),
		ThresholdLow:    asFloatPtr(m["threshold_low"]),
		ThresholdHigh:   asFloatPtr(m["threshold_high"]),
		ModelVersion:    asString(m["model_version"]),
		RegistryVersion: asString(m["registry_version"]),
		Reasons:         extractReasons(m),
		Raw:             m,
	}

	if seq, ok := m["transaction_seq"]; ok && seq != nil {
		out.TransactionSeq = seq
	} else if id, ok := m["id"]; ok && id != nil {
		out.TransactionSeq = id
	}

	return out
}

// MapBatchResult reshapes an unwrapped batch object into a BatchResult.
// Non-object input yields a zero-value result with an empty row sequence.
func MapBatchResult(v any) *BatchResult {
	m, ok := v.(map[string]any)
	if !ok {
		return &BatchResult{Results: []ScoreResult{}}
	}

	rows, _ := m["results"].([]any)
	out := &BatchResult{
		ThresholdLow:    asFloatPtr(m["threshold_low"]),
		ThresholdHigh:   asFloatPtr(m["threshold_high"]),
		ModelVersion:    asString(m["model_version"]),
		RegistryVersion: asString(m["registry_version"]),
		Results:         make([]ScoreResult, 0, len(rows)),
		Raw:             m,
	}

	// Row order follows submission order, never re-sorted.
	for _, row := range rows {
		if mapped := MapScoreResult(row); mapped != nil {
			out.Results = append(out.Results, *mapped)
		}
	}

	if count := asFloatPtr(m["count"]); count != nil {
		out.Count = int64(*count)
	} else {
		out.Count = int64(len(out.Results))
	}
	return out
}

// MapHealth reshapes the upstream health response.
func MapHealth(v any) *HealthStatus {
	m, ok := v.(map[string]any)
	if !ok {
		return &HealthStatus{}
	}
	return &HealthStatus{
		Status:          asString(m["status"]),
		ModelVersion:    asString(m["model_version"]),
		RegistryVersion: asString(m["registry_version"]),
		Alias:           asString(m["alias"]),
		ThresholdLow:    asFloatPtr(m["threshold_low"]),
		ThresholdHigh:   asFloatPtr(m["threshold_high"]),
		Raw:             m,
	}
}

// MapReasons normalizes a sequence of raw explanation entries. Entries of
// unknown shape produce a synthesized title instead of failing; an empty or
// absent sequence maps to an empty slice, never fabricated placeholders.
func MapReasons(v any) []Reason {
	entries, ok := v.([]any)
	if !ok {
		return []Reason{}
	}

	out := make([]Reason, 0, len(entries))
	for index, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			out = append(out, Reason{
				Title:       fmt.Sprintf("Reason %d", index+1),
				Description: "",
				Raw:         entry,
			})
			continue
		}

		title := firstString(m, "feature", "field", "reason", "label", "name")
		if title == "" {
			title = fmt.Sprintf("Reason %d", index+1)
		}

		out = append(out, Reason{
			Title:       title,
			Description: firstString(m, "description", "detail", "message", "explanation", "summary"),
			Impact:      firstNumber(m, "delta_score", "impact", "weight", "score", "value", "direction"),
			Direction:   asString(m["direction"]),
			Raw:         m,
		})
	}
	return out
}

// extractReasons reads a row's reasons either as an inline array or as a
// reasons_json string, matching both backend response conventions.
func extractReasons(m map[string]any) []Reason {
	if raw, ok := m["reasons"].([]any); ok {
		return MapReasons(raw)
	}
	if encoded, ok := m["reasons_json"].(string); ok && strings.TrimSpace(encoded) != "" {
		var parsed []any
		if err := json.Unmarshal([]byte(encoded), &parsed); err == nil {
			return MapReasons(parsed)
		}
	}
	return []Reason{}
}

// ResolveDecision maps a decision string onto a display tag. Matching is
// case-insensitive and total: unrecognized non-empty values pass through as
// the label with a neutral color.
func ResolveDecision(decision string) DecisionMeta {
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case "allow", "approved":
		return DecisionMeta{Label: "Allow", Color: "green"}
	case "review", "manual_review":
		return DecisionMeta{Label: "Manual review", Color: "gold"}
	case "deny", "reject", "block":
		return DecisionMeta{Label: "Deny", Color: "red"}
	case "":
		return DecisionMeta{Label: "Unknown", Color: "default"}
	default:
		return DecisionMeta{Label: decision, Color: "info"}
	}
}

// FormatScore renders a score for percentage display with two decimals.
// Values at or below 1 are treated as fractions and scaled by 100; larger
// values are assumed to already be percentages. Nil and non-finite scores
// map to nil (rendered as "N/A" by the UI). A genuine percentage of exactly
// 1.0 is indistinguishable from fraction 1.0 and is treated as a fraction.
func FormatScore(score *float64) *string {
	if score == nil {
		return nil
	}
	v := *score
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	if v <= 1 {
		v *= 100
	}
	formatted := strconv.FormatFloat(v, 'f', 2, 64)
	return &formatted
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := asString(m[key]); s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(m map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if n := asFloatPtr(v); n != nil {
			return n
		}
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloatPtr(v any) *float64 {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return &x
	case float32:
		f := float64(x)
		return asFloatPtr(f)
	case int:
		f := float64(x)
		return &f
	case int64:
		f := float64(x)
		return &f
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil
		}
		return asFloatPtr(f)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	default:
		return nil
	}
}
