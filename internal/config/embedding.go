package config

import (
	"fmt"
	"time"
)

// EmbeddingConfig holds configuration for the embedding endpoint. The
// endpoint speaks the OpenAI embeddings wire format, typically served by a
// local all-MiniLM-L6-v2 deployment.
type EmbeddingConfig struct {
	// BaseURL of the OpenAI-compatible embeddings endpoint.
	// Default: http://localhost:8081/v1
	BaseURL string

	// APIKey for the endpoint. Local deployments usually accept any value.
	APIKey string

	// Model identifier sent with each request. Default: all-MiniLM-L6-v2
	Model string

	// Dimension every stored and queried vector must have. Default: 384
	Dimension int

	// BatchSize caps texts per embedding call. Default: 32
	BatchSize int

	// Timeout bounds one embedding call. Default: 30s
	Timeout time.Duration
}

// LoadEmbeddingConfig loads embedding endpoint configuration from environment
// variables. Returns a config with defaults if environment variables are not set.
func LoadEmbeddingConfig() (*EmbeddingConfig, error) {
	config := &EmbeddingConfig{
		BaseURL:   getEnvOrDefault("EMBEDDING_BASE_URL", "http://localhost:8081/v1"),
		APIKey:    getEnvOrDefault("EMBEDDING_API_KEY", "local"),
		Model:     getEnvOrDefault("EMBEDDING_MODEL", "all-MiniLM-L6-v2"),
		Dimension: getEnvInt("EMBEDDING_DIM", 384),
		BatchSize: getEnvInt("EMBEDDING_BATCH_SIZE", 32),
		Timeout:   getEnvDuration("EMBEDDING_TIMEOUT", 30*time.Second),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding configuration: %w", err)
	}

	return config, nil
}

// Validate checks configuration correctness.
func (c *EmbeddingConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("EMBEDDING_BASE_URL cannot be empty")
	}

	if c.Model == "" {
		return fmt.Errorf("EMBEDDING_MODEL cannot be empty")
	}

	if c.Dimension <= 0 || c.Dimension > 4096 {
		return fmt.Errorf("EMBEDDING_DIM must be between 1 and 4096, got %d", c.Dimension)
	}

	if c.BatchSize <= 0 || c.BatchSize > 256 {
		return fmt.Errorf("EMBEDDING_BATCH_SIZE must be between 1 and 256, got %d", c.BatchSize)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("EMBEDDING_TIMEOUT must be positive")
	}

	return nil
}
