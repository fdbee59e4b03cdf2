package llm

import (
	"fmt"

	"pulse-digest/internal/config"
)

// NewFromConfig returns the provider selected by LLM_PROVIDER. The config
// has already validated the provider name and its API key.
func NewFromConfig(cfg *config.ModelConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderClaude:
		return NewClaude(cfg), nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
