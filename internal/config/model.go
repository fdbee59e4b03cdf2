package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ModelProvider selects which hosted model API backs digest, rank and email
// generation.
type ModelProvider string

const (
	ProviderClaude ModelProvider = "claude"
	ProviderOpenAI ModelProvider = "openai"
)

// ModelConfig holds configuration for the model provider used by the
// summarization, ranking and email composition stages.
type ModelConfig struct {
	// Provider is the active model API. Default: claude
	Provider ModelProvider

	// AnthropicAPIKey authenticates Claude calls. Required when Provider is claude.
	AnthropicAPIKey string

	// OpenAIAPIKey authenticates OpenAI calls. Required when Provider is openai.
	OpenAIAPIKey string

	// Model is the model identifier passed to the provider.
	// Default: provider-specific (claude-sonnet-4-5-20250929 / gpt-3.5-turbo)
	Model string

	// DigestTemperature for per-item summarization. Default: 0.7
	DigestTemperature float32

	// RankTemperature for scoring. Ranking wants stable scores. Default: 0.3
	RankTemperature float32

	// EmailTemperature for intro composition. Default: 0.7
	EmailTemperature float32

	// Timeout bounds a single model call. Default: 60s
	Timeout time.Duration

	// Concurrency is the shared in-flight call budget for all model calls
	// within a run. Default: 4
	Concurrency int

	// SummaryInputCharLimit caps the content characters included in a digest
	// prompt. Default: 10000, valid range 1000-50000.
	SummaryInputCharLimit int
}

// Model provider defaults.
const (
	DefaultClaudeModel = "claude-sonnet-4-5-20250929"
	DefaultOpenAIModel = "gpt-3.5-turbo"

	defaultSummaryInputCharLimit = 10000
	minSummaryInputCharLimit     = 1000
	maxSummaryInputCharLimit     = 50000
)

// LoadModelConfig loads model provider configuration from environment variables.
// Returns a config with defaults if environment variables are not set.
func LoadModelConfig() (*ModelConfig, error) {
	provider := ModelProvider(getEnvOrDefault("LLM_PROVIDER", string(ProviderClaude)))

	defaultModel := DefaultClaudeModel
	if provider == ProviderOpenAI {
		defaultModel = DefaultOpenAIModel
	}

	config := &ModelConfig{
		Provider:              provider,
		AnthropicAPIKey:       os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		Model:                 getEnvOrDefault("LLM_MODEL", defaultModel),
		DigestTemperature:     float32(getEnvFloat("DIGEST_TEMPERATURE", 0.7)),
		RankTemperature:       float32(getEnvFloat("RANK_TEMPERATURE", 0.3)),
		EmailTemperature:      float32(getEnvFloat("EMAIL_TEMPERATURE", 0.7)),
		Timeout:               getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		Concurrency:           getEnvInt("LLM_CONCURRENCY", 4),
		SummaryInputCharLimit: getEnvInt("SUMMARY_INPUT_CHAR_LIMIT", defaultSummaryInputCharLimit),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model configuration: %w", err)
	}

	return config, nil
}

// Validate checks configuration correctness.
func (c *ModelConfig) Validate() error {
	switch c.Provider {
	case ProviderClaude:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=claude")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be claude or openai, got %q", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("LLM_MODEL cannot be empty")
	}

	for name, temp := range map[string]float32{
		"DIGEST_TEMPERATURE": c.DigestTemperature,
		"RANK_TEMPERATURE":   c.RankTemperature,
		"EMAIL_TEMPERATURE":  c.EmailTemperature,
	} {
		if temp < 0 || temp > 1 {
			return fmt.Errorf("%s must be between 0.0 and 1.0, got %v", name, temp)
		}
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("LLM_CONCURRENCY must be positive")
	}

	if c.SummaryInputCharLimit < minSummaryInputCharLimit || c.SummaryInputCharLimit > maxSummaryInputCharLimit {
		return fmt.Errorf("SUMMARY_INPUT_CHAR_LIMIT must be between %d and %d, got %d",
			minSummaryInputCharLimit, maxSummaryInputCharLimit, c.SummaryInputCharLimit)
	}

	return nil
}

// APIKey returns the key for the active provider.
func (c *ModelConfig) APIKey() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.AnthropicAPIKey
}

// getEnvOrDefault returns environment variable value or default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool parses boolean environment variable with default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt parses integer environment variable with default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloat parses float environment variable with default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration parses duration environment variable with default.
// Supports formats like "30s", "1m", "2h".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
