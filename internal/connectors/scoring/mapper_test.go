package scoring

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("failed to decode fixture: %v", err)
	}
	return v
}

func TestUnwrapEnvelope_AllShapesMapIdentically(t *testing.T) {
	shapes := []string{
		`{"data": {"score": 0.5}}`,
		`{"result": {"score": 0.5}}`,
		`{"score": 0.5}`,
	}

	for _, shape := range shapes {
		result := MapScoreResult(UnwrapEnvelope(decode(t, shape)))
		if result == nil {
			t.Fatalf("shape %s: expected a mapped result", shape)
		}
		if result.Score == nil || *result.Score != 0.5 {
			t.Fatalf("shape %s: expected score 0.5, got %v", shape, result.Score)
		}
	}
}

func TestUnwrapEnvelope_DoesNotRecurse(t *testing.T) {
	v := decode(t, `{"data": {"data": {"score": 0.5}, "score": 0.7}}`)
	result := MapScoreResult(UnwrapEnvelope(v))
	if result.Score == nil || *result.Score != 0.7 {
		t.Fatalf("expected single unwrap to keep score 0.7, got %v", result.Score)
	}
}

func TestMapScoreResult_DecisionFallsBackToOutcome(t *testing.T) {
	result := MapScoreResult(decode(t, `{"score": "0.92", "outcome": "deny"}`))
	if result.Decision != "deny" {
		t.Fatalf("expected outcome fallback, got %q", result.Decision)
	}
	if result.Score == nil || *result.Score != 0.92 {
		t.Fatalf("expected string score coerced, got %v", result.Score)
	}
}

func TestMapScoreResult_NonFiniteScoreIsNil(t *testing.T) {
	result := MapScoreResult(decode(t, `{"score": "not-a-number", "decision": "allow"}`))
	if result.Score != nil {
		t.Fatalf("expected nil score, got %v", result.Score)
	}
}

func TestMapScoreResult_ReasonsJSONString(t *testing.T) {
	result := MapScoreResult(decode(t, `{"score": 0.4, "reasons_json": "[{\"feature\": \"velocity_24h\"}]"}`))
	if len(result.Reasons) != 1 || result.Reasons[0].Title != "velocity_24h" {
		t.Fatalf("expected reasons_json parsed, got %v", result.Reasons)
	}
}

func TestMapBatchResult_NonObjectYieldsZeroValue(t *testing.T) {
	result := MapBatchResult("oops")
	if result.Count != 0 || len(result.Results) != 0 {
		t.Fatalf("expected zero-value batch result, got %+v", result)
	}
}

func TestMapBatchResult_CountDefaultsToRows(t *testing.T) {
	result := MapBatchResult(decode(t, `{"results": [{"score": 0.1}, {"score": 0.9}]}`))
	if result.Count != 2 {
		t.Fatalf("expected count 2, got %d", result.Count)
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Results))
	}
}

func TestMapBatchResult_PreservesRowOrder(t *testing.T) {
	result := MapBatchResult(decode(t, `{
		"count": 3,
		"results": [
			{"transaction_seq": 1, "score": 0.1},
			{"transaction_seq": 2, "score": 0.2},
			{"transaction_seq": 3, "score": 0.3}
		]
	}`))
	if result.Count != 3 {
		t.Fatalf("expected count 3, got %d", result.Count)
	}
	for i, row := range result.Results {
		if row.TransactionSeq != float64(i+1) {
			t.Fatalf("row %d: expected transaction_seq %d, got %v", i, i+1, row.TransactionSeq)
		}
	}
}

func TestResolveDecision_CaseInsensitive(t *testing.T) {
	upper := ResolveDecision("ALLOW")
	lower := ResolveDecision("allow")
	if upper != lower {
		t.Fatalf("expected case-insensitive match, got %+v vs %+v", upper, lower)
	}
	if upper.Label != "Allow" || upper.Color != "green" {
		t.Fatalf("unexpected allow tag: %+v", upper)
	}
}

func TestResolveDecision_Vocabulary(t *testing.T) {
	cases := map[string]DecisionMeta{
		"approved":      {Label: "Allow", Color: "green"},
		"review":        {Label: "Manual review", Color: "gold"},
		"manual_review": {Label: "Manual review", Color: "gold"},
		"deny":          {Label: "Deny", Color: "red"},
		"reject":        {Label: "Deny", Color: "red"},
		"block":         {Label: "Deny", Color: "red"},
		"":              {Label: "Unknown", Color: "default"},
		"escalate":      {Label: "escalate", Color: "info"},
	}
	for input, want := range cases {
		if got := ResolveDecision(input); got != want {
			t.Fatalf("ResolveDecision(%q): expected %+v, got %+v", input, want, got)
		}
	}
}

func TestFormatScore(t *testing.T) {
	fraction := 0.873
	if got := FormatScore(&fraction); got == nil || *got != "87.30" {
		t.Fatalf("expected 87.30, got %v", got)
	}
	percentage := 87.3
	if got := FormatScore(&percentage); got == nil || *got != "87.30" {
		t.Fatalf("expected 87.30, got %v", got)
	}
	if got := FormatScore(nil); got != nil {
		t.Fatalf("expected nil for nil score, got %v", got)
	}
	boundary := 1.0
	if got := FormatScore(&boundary); got == nil || *got != "100.00" {
		t.Fatalf("expected boundary 1.0 treated as fraction, got %v", got)
	}
}

func TestMapReasons_Empty(t *testing.T) {
	if got := MapReasons([]any{}); len(got) != 0 {
		t.Fatalf("expected empty reasons, got %v", got)
	}
	if got := MapReasons(nil); len(got) != 0 {
		t.Fatalf("expected empty reasons for absent input, got %v", got)
	}
}

func TestMapReasons_FallbackChains(t *testing.T) {
	reasons := MapReasons(decode(t, `[{"feature": "velocity_24h", "delta_score": 0.12, "direction": "↑"}]`))
	if len(reasons) != 1 {
		t.Fatalf("expected one reason, got %d", len(reasons))
	}
	r := reasons[0]
	if r.Title != "velocity_24h" {
		t.Fatalf("expected feature title, got %q", r.Title)
	}
	if r.Impact == nil || *r.Impact != 0.12 {
		t.Fatalf("expected impact 0.12, got %v", r.Impact)
	}
	if r.Direction != "↑" {
		t.Fatalf("expected direction preserved, got %q", r.Direction)
	}
}

func TestMapReasons_NonObjectEntry(t *testing.T) {
	reasons := MapReasons(decode(t, `["velocity spike", {"label": "geo_mismatch", "detail": "country differs"}]`))
	if len(reasons) != 2 {
		t.Fatalf("expected two reasons, got %d", len(reasons))
	}
	if reasons[0].Title != "Reason 1" || reasons[0].Description != "" {
		t.Fatalf("expected synthesized reason, got %+v", reasons[0])
	}
	if reasons[1].Title != "geo_mismatch" || reasons[1].Description != "country differs" {
		t.Fatalf("expected fallback title/description, got %+v", reasons[1])
	}
}

func TestExtractAuthPayload_WrappedToken(t *testing.T) {
	cases := []string{
		`{"access_token": "tok", "username": "nhan"}`,
		`{"token": "tok", "user": {"username": "nhan"}}`,
		`{"data": {"access_token": "tok", "username": "nhan"}}`,
		`{"result": {"token": "tok", "user": {"username": "nhan"}}}`,
	}
	for _, raw := range cases {
		payload := ExtractAuthPayload(decode(t, raw))
		if payload == nil || payload.Token != "tok" {
			t.Fatalf("case %s: expected token extracted, got %+v", raw, payload)
		}
		if payload.Username != "nhan" {
			t.Fatalf("case %s: expected username extracted, got %+v", raw, payload)
		}
	}
}
