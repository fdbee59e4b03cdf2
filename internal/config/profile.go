package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pulse-digest/internal/domain/entity"
)

// LoadProfile loads the recipient profile from a YAML file. An empty path
// returns the built-in default profile.
// The path parameter is expected to come from a trusted source (command-line argument or PROFILE_PATH).
func LoadProfile(path string) (*entity.Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}

	// #nosec G304 -- path is provided by trusted source (CLI arg or config), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	var profile entity.Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("profile validation failed: %w", err)
	}

	return &profile, nil
}

// DefaultProfile returns the built-in recipient profile used when no
// PROFILE_PATH is configured.
func DefaultProfile() *entity.Profile {
	return &entity.Profile{
		Name:           "AI News Reader",
		Background:     "Software engineer following applied AI and the research frontier",
		Interests:      []string{"large language models", "AI safety", "open-source models", "applied ML"},
		ExpertiseLevel: entity.ExpertiseIntermediate,
		Avoidances:     []string{"celebrity gossip", "funding rumors without sources"},
	}
}
