package llm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* ───────── NoOp Provider Tests ───────── */

// TestNoOp_Complete_EchoesPrompt verifies the reply is digest-shaped JSON built from the prompt
func TestNoOp_Complete_EchoesPrompt(t *testing.T) {
	provider := NewNoOp()

	reply, err := provider.Complete(context.Background(), CompletionRequest{
		Prompt: "Line one\n\n   Line two",
	})
	require.NoError(t, err)

	var parsed struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(reply), &parsed))

	assert.Equal(t, "Unsummarized item", parsed.Title)
	assert.Equal(t, "Line one Line two", parsed.Summary)
	assert.Equal(t, "noop", provider.Name())
}

// TestNoOp_Complete_TruncatesLongPrompt verifies the echo is capped at 500 runes
func TestNoOp_Complete_TruncatesLongPrompt(t *testing.T) {
	provider := NewNoOp()

	reply, err := provider.Complete(context.Background(), CompletionRequest{
		Prompt: strings.Repeat("あ", 600),
	})
	require.NoError(t, err)

	var parsed struct {
		Summary string `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(reply), &parsed))

	assert.Equal(t, 500, utf8.RuneCountInString(parsed.Summary))
	assert.True(t, strings.HasPrefix(parsed.Summary, "あ"))
}
