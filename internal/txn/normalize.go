// Package txn converts loosely-typed form and CSV transaction input into the
// canonical payload shape the scoring API expects. All functions are total:
// values that fail coercion are dropped from the payload, never errored on.
package txn

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// dateTimeLayouts are tried in order when a raw value needs a generic parse.
var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// NormalizePayload builds a canonical transaction from raw field values.
// Nil values and empty strings are dropped; numeric, date and datetime fields
// are coerced to their wire representation or dropped when unparseable; every
// other field passes through with string values trimmed. Normalizing an
// already-normalized payload yields an identical result.
func NormalizePayload(values map[string]any) map[string]any {
	payload := make(map[string]any, len(values))

	for key, value := range values {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok {
			trimmed := strings.TrimSpace(s)
			if trimmed == "" {
				continue
			}
			payload[key] = trimmed
			continue
		}
		payload[key] = value
	}

	for _, field := range NumericFields {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		if n, ok := toFinite(raw); ok {
			payload[field] = n
		} else {
			delete(payload, field)
		}
	}

	for _, field := range DateTimeFields {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		if formatted, ok := formatDateTime(raw); ok {
			payload[field] = formatted
		} else {
			delete(payload, field)
		}
	}

	for _, field := range DateFields {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		if formatted, ok := formatDate(raw); ok {
			payload[field] = formatted
		} else {
			delete(payload, field)
		}
	}

	return payload
}

// NormalizeBatch normalizes each record and filters out records that end up
// with zero surviving fields. The result never contains an all-empty payload.
func NormalizeBatch(records []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, record := range records {
		normalized := NormalizePayload(record)
		if len(normalized) == 0 {
			continue
		}
		out = append(out, normalized)
	}
	return out
}

func toFinite(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case float32:
		return toFinite(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// formatDateTime produces "YYYY-MM-DD HH:MM:SS". A value that already carries
// a date and a time is reused: the T combinator becomes a space and the time
// part is padded to seconds precision. Anything else goes through a generic
// parse in local time.
func formatDateTime(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if strings.Contains(s, "-") && strings.Contains(s, ":") {
		normalized := strings.Replace(s, "T", " ", 1)
		if idx := strings.IndexAny(normalized, "Z+"); idx > 10 {
			if t, ok := parseAny(s); ok {
				return t.Format("2006-01-02 15:04:05"), true
			}
			normalized = normalized[:idx]
		}
		parts := strings.SplitN(normalized, " ", 2)
		if len(parts) == 2 {
			return parts[0] + " " + padSeconds(parts[1]), true
		}
		return normalized, true
	}

	if t, ok := parseAny(s); ok {
		return t.Format("2006-01-02 15:04:05"), true
	}
	return "", false
}

// formatDate produces "YYYY-MM-DD". Strings of length >= 10 are truncated to
// their date prefix, which handles both "YYYY-MM-DD" and "YYYY-MM-DDTHH:MM".
func formatDate(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if len(s) >= 10 {
		return s[:10], true
	}
	if t, ok := parseAny(s); ok {
		return t.Format("2006-01-02"), true
	}
	return "", false
}

func parseAny(s string) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func padSeconds(clock string) string {
	if strings.Count(clock, ":") == 1 {
		return clock + ":00"
	}
	return clock
}

func trimBOM(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF"))
}
