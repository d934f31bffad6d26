package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// trailingComma matches a comma directly before a closing brace or bracket,
// the most common syntax slip in model-produced JSON.
var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// ExtractJSON pulls the first JSON value out of a model response and decodes it.
// Markdown code fences and any prose before or after the value are ignored.
func ExtractJSON[T any](response string) (T, error) {
	var result T

	cleaned := StripCodeFence(response)
	start := strings.IndexAny(cleaned, "{[")
	if start == -1 {
		return result, fmt.Errorf("no JSON value found in response")
	}
	body := cleaned[start:]

	if err := json.NewDecoder(strings.NewReader(body)).Decode(&result); err == nil {
		return result, nil
	}

	repaired := trailingComma.ReplaceAllString(body, "$1")
	if err := json.NewDecoder(strings.NewReader(repaired)).Decode(&result); err != nil {
		return result, fmt.Errorf("parse JSON: %w", err)
	}
	return result, nil
}

// StripCodeFence removes a surrounding ``` or ```json fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
