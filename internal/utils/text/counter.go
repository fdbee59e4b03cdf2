// Package text provides utilities for text processing shared by the
// summarization and embedding stages. Character budgets are expressed in
// Unicode characters (runes), never bytes, so multi-byte scripts and emoji
// count the same as ASCII.
package text

import "strings"

// CountRunes counts the number of Unicode characters (runes) in the given text.
//
// Examples:
//
//	CountRunes("hello")     // returns 5
//	CountRunes("こんにちは")  // returns 5
//	CountRunes("hello世界")  // returns 7
//	CountRunes("")          // returns 0
func CountRunes(text string) int {
	return len([]rune(text))
}

// TruncateRunes returns text cut to at most limit runes. A limit of zero or
// less returns the input unchanged. The cut never splits a rune, so the
// result is always valid UTF-8.
func TruncateRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// TruncateForPrompt cuts text to at most limit runes for inclusion in a model
// prompt. Unlike TruncateRunes it tries to end on a word boundary when one
// exists within the final 20% of the budget, since mid-word cuts tend to
// confuse the model about the last token.
func TruncateForPrompt(text string, limit int) string {
	cut := TruncateRunes(text, limit)
	if cut == text {
		return text
	}
	boundary := strings.LastIndexAny(cut, " \t\n")
	if boundary > len(cut)*4/5 {
		cut = cut[:boundary]
	}
	return strings.TrimRight(cut, " \t\n")
}

// NormalizeWhitespace collapses runs of whitespace into single spaces and
// trims the ends. Scraped pages frequently carry large runs of newlines and
// tabs that waste prompt budget.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
