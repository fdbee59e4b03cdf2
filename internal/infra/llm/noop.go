package llm

import (
	"context"
	"encoding/json"

	"pulse-digest/internal/utils/text"
)

// NoOp keeps a pipeline run flowing without a model key. It answers every
// prompt with a small JSON object echoing the prompt tail, which the digest
// stage accepts as-is; the rank and email stages fail to parse it and take
// their documented degradation paths (recency ordering, static intro).
type NoOp struct{}

// NewNoOp creates a provider that never calls a model API.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Name implements Provider.
func (n *NoOp) Name() string { return "noop" }

// Complete implements Provider.
func (n *NoOp) Complete(_ context.Context, req CompletionRequest) (string, error) {
	reply := struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	}{
		Title:   "Unsummarized item",
		Summary: text.TruncateRunes(text.NormalizeWhitespace(req.Prompt), 500),
	}

	encoded, err := json.Marshal(reply)
	if err != nil {
		return "", &ModelError{Kind: ErrKindPermanent, Err: err}
	}
	return string(encoded), nil
}
