// Package pagination provides offset pagination for the digest API's
// listing endpoints (summaries, records, runs): query parsing with
// clamping, offset math, and a generic response envelope.
package pagination

import (
	"os"
	"strconv"
)

// Config holds pagination bounds.
type Config struct {
	DefaultPage     int
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultConfig returns page=1, page_size=20, max=100.
func DefaultConfig() Config {
	return Config{
		DefaultPage:     1,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

// LoadFromEnv reads PAGINATION_DEFAULT_PAGE, PAGINATION_DEFAULT_PAGE_SIZE
// and PAGINATION_MAX_PAGE_SIZE, falling back to defaults for unset or
// unparseable values.
func LoadFromEnv() Config {
	return Config{
		DefaultPage:     getEnvAsInt("PAGINATION_DEFAULT_PAGE", 1),
		DefaultPageSize: getEnvAsInt("PAGINATION_DEFAULT_PAGE_SIZE", 20),
		MaxPageSize:     getEnvAsInt("PAGINATION_MAX_PAGE_SIZE", 100),
	}
}

func getEnvAsInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
