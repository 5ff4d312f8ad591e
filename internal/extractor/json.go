package extractor

import (
	"encoding/json"
	"strings"
)

// Decoded is the tagged outcome of coercing backend output into T: either
// parsed (OK, Value set) or degraded (Raw holds the text that failed to parse).
type Decoded[T any] struct {
	Value T
	Raw   string
	OK    bool
}

// DecodeJSON parses raw as a JSON object of type T. When raw is not exactly
// one object, the first balanced object inside it is tried, after stripping
// markdown fences. Anything else comes back degraded.
func DecodeJSON[T any](raw string) Decoded[T] {
	out := Decoded[T]{Raw: raw}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && unmarshalInto(trimmed, &out.Value) {
		out.OK = true
		return out
	}

	candidate := extractJSON(raw)
	if candidate == "" || !unmarshalInto(candidate, &out.Value) {
		return out
	}
	out.OK = true
	return out
}

// unmarshalInto decodes s into v, resetting v to its zero value on failure.
func unmarshalInto[T any](s string, v *T) bool {
	if err := json.Unmarshal([]byte(s), v); err != nil {
		var zero T
		*v = zero
		return false
	}
	return true
}

// extractJSON finds the first balanced JSON object in a string and returns it.
// It strips common markdown fences first.
func extractJSON(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, r := range []string{"```json", "```", "`json"} {
		s = strings.ReplaceAll(s, r, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}

	// no balanced object
	return ""
}
