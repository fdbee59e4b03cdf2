package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse-digest/internal/domain/entity"
)

func TestDefaultProfile(t *testing.T) {
	profile := DefaultProfile()

	require.NoError(t, profile.Validate())
	assert.Equal(t, entity.ExpertiseIntermediate, profile.ExpertiseLevel)
	assert.NotEmpty(t, profile.Interests)
}

func TestLoadProfile_EmptyPathUsesDefault(t *testing.T) {
	profile, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile().Name, profile.Name)
}

func TestLoadProfile_FromFile(t *testing.T) {
	yaml := `
name: Rin
background: ML engineer at a robotics startup
interests:
  - reinforcement learning
  - embodied AI
expertise_level: advanced
avoidances:
  - crypto
`
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	profile, err := LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "Rin", profile.Name)
	assert.Equal(t, entity.ExpertiseAdvanced, profile.ExpertiseLevel)
	assert.Equal(t, []string{"reinforcement learning", "embodied AI"}, profile.Interests)
	assert.Equal(t, []string{"crypto"}, profile.Avoidances)
}

func TestLoadProfile_InvalidExpertise(t *testing.T) {
	yaml := `
name: Rin
expertise_level: wizard
`
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	_, err := LoadProfile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expertise_level")
}

func TestLoadProfile_FileNotFound(t *testing.T) {
	_, err := LoadProfile("/nonexistent/profile.yaml")
	assert.Error(t, err)
}
