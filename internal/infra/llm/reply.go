package llm

import (
	"errors"
	"strings"
)

// ErrNoJSON means a model reply contained no JSON object to parse.
var ErrNoJSON = errors.New("reply contains no JSON object")

// ExtractJSONObject pulls the JSON object out of a model reply. Models asked
// for strict JSON still wrap it in markdown fences or lead-in prose often
// enough that callers cannot unmarshal the raw reply. The returned slice runs
// from the first '{' to the matching closing brace.
func ExtractJSONObject(reply string) (string, error) {
	text := strings.TrimSpace(reply)

	// ```json ... ``` フェンスを剥がす
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			text = rest[:end]
		} else {
			text = rest
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}
