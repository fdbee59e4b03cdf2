// Package config provides fail-open environment loading for operational
// settings. Every loader returns a usable value: when a variable is unset
// the default is used silently, and when it is malformed or fails
// validation the default is used with a warning attached to the result.
// Callers log the warnings and keep running; a bad DIGEST_SCHEDULE should
// never take the worker down.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigLoadResult carries the outcome of loading a single value.
// Value holds either the parsed environment value or the default;
// FallbackApplied is true only when a set-but-invalid value was replaced.
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString returns the environment value or the default when unset.
// No validation is applied; use LoadEnvWithFallback when a bad value must
// not propagate.
func LoadEnvString(envKey, defaultValue string) string {
	if value := os.Getenv(envKey); value != "" {
		return value
	}
	return defaultValue
}

// LoadEnvWithFallback loads a string and runs it through validator.
// An unset variable falls back to the default without a warning; a set
// value that fails validation falls back with a warning.
//
//	result := LoadEnvWithFallback("DIGEST_SCHEDULE", "0 6 * * *", ValidateCronSchedule)
//	schedule := result.Value.(string)
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	value := os.Getenv(envKey)
	if value == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	if validator != nil {
		if err := validator(value); err != nil {
			return fallbackResult(envKey, value, err, defaultValue)
		}
	}
	return ConfigLoadResult{Value: value}
}

// LoadEnvDuration loads a Go duration string ("90s", "30m", "2h"), then
// validates it. Parse and validation failures both fall back.
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fallbackResult(envKey, raw, err, defaultValue)
	}
	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallbackResult(envKey, raw, err, defaultValue)
		}
	}
	return ConfigLoadResult{Value: parsed}
}

// LoadEnvInt loads a decimal integer, then validates it.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallbackResult(envKey, raw, fmt.Errorf("invalid integer format"), defaultValue)
	}
	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallbackResult(envKey, raw, err, defaultValue)
		}
	}
	return ConfigLoadResult{Value: parsed}
}

// LoadEnvBool loads a boolean. Accepted spellings are those of
// strconv.ParseBool: 1/0, t/f, true/false in any common casing.
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallbackResult(envKey, raw, fmt.Errorf("invalid boolean format, expected 'true' or 'false'"), defaultValue)
	}
	return ConfigLoadResult{Value: parsed}
}

func fallbackResult(envKey, raw string, err error, defaultValue interface{}) ConfigLoadResult {
	warning := fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'", envKey, raw, err, defaultValue)
	return ConfigLoadResult{
		Value:           defaultValue,
		Warnings:        []string{warning},
		FallbackApplied: true,
	}
}
