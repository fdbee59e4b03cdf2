// Package llm provides hosted language-model providers behind a single
// completion port. Implementations exist for Anthropic (Claude) and OpenAI,
// plus a no-op provider for runs without a model key. All providers wrap
// calls with retry and circuit-breaker logic and record call metrics.
package llm

import (
	"context"
	"time"
)

// DefaultMaxTokens bounds the reply when the caller does not set a budget.
const DefaultMaxTokens = 1024

// CompletionRequest is one prompt for the model. Temperature is passed
// through as-is; callers choose per purpose (digesting wants variety,
// scoring wants stability).
type CompletionRequest struct {
	// System is the optional system prompt. Empty means none.
	System string

	// Prompt is the user message. Callers truncate content to their own
	// budget before building it; providers send it verbatim.
	Prompt string

	// Temperature in [0.0, 1.0].
	Temperature float32

	// MaxTokens caps the reply. Zero selects DefaultMaxTokens.
	MaxTokens int
}

// withDefaults fills unset fields.
func (r CompletionRequest) withDefaults() CompletionRequest {
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	return r
}

// Provider is the completion port used by the digest, rank and email stages.
type Provider interface {
	// Complete sends one prompt and returns the model's text reply.
	// Errors are *ModelError unless the context was cancelled.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Name identifies the provider in logs and metric labels.
	Name() string
}

// callTimeout returns the per-call timeout, guarding against a zero config.
func callTimeout(configured time.Duration) time.Duration {
	if configured <= 0 {
		return 60 * time.Second
	}
	return configured
}
