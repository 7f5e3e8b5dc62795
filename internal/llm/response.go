package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ParseAnswer extracts the canonical answer from a complete model reply.
// Replies shaped like {"response": "..."} yield the field; anything else,
// including a non-string "response", is returned unchanged.
func ParseAnswer(full string) string {
	trimmed := strings.TrimSpace(full)
	if !gjson.Valid(trimmed) {
		return full
	}

	parsed := gjson.Parse(trimmed)
	if !parsed.IsObject() {
		return full
	}

	field := parsed.Get("response")
	if field.Type != gjson.String {
		return full
	}
	return field.String()
}
