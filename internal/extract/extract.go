// Package extract isolates the JSON object from an engine reply. It is
// purely syntactic and never interprets the content.
package extract

import (
	"errors"
	"strings"
)

// ErrEmptyExtraction is returned when nothing remains after stripping.
var ErrEmptyExtraction = errors.New("extract: reply contains no content")

// Extract strips code fences and any prose outside the outermost braces.
// A reply that opens an object but never closes it is returned from the
// opening brace onward so the validator can attempt a repair.
func Extract(raw string) (string, error) {
	text := stripFences(strings.TrimSpace(raw))

	if start := strings.Index(text, "{"); start >= 0 {
		end := strings.LastIndex(text, "}")
		if end > start {
			text = text[start : end+1]
		} else {
			text = text[start:]
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyExtraction
	}
	return text, nil
}

// stripFences removes a leading ``` or ```lang line and the last closing fence.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n```"); idx >= 0 {
			text = text[idx+1:]
		} else {
			return text
		}
	}

	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 && isLangTag(text[:nl]) {
		text = text[nl+1:]
	} else if isLangTag(text) {
		return ""
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return text
}

func isLangTag(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}
