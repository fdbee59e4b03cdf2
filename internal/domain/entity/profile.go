package entity

import "fmt"

// ExpertiseLevel grades how technical the digest prose should be.
type ExpertiseLevel string

const (
	ExpertiseBeginner     ExpertiseLevel = "beginner"
	ExpertiseIntermediate ExpertiseLevel = "intermediate"
	ExpertiseAdvanced     ExpertiseLevel = "advanced"
)

// IsValid reports whether the level is one of the known grades.
func (l ExpertiseLevel) IsValid() bool {
	switch l {
	case ExpertiseBeginner, ExpertiseIntermediate, ExpertiseAdvanced:
		return true
	}
	return false
}

// Profile describes the digest recipient. It is loaded once at process init
// and read-only afterwards; every ranking and intro prompt embeds it.
type Profile struct {
	Name           string         `yaml:"name"`
	Background     string         `yaml:"background"`
	Interests      []string       `yaml:"interests"`
	ExpertiseLevel ExpertiseLevel `yaml:"expertise_level"`
	Avoidances     []string       `yaml:"avoidances"`
}

// Validate checks the profile invariants enforced at startup.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if !p.ExpertiseLevel.IsValid() {
		return fmt.Errorf("%w: expertise_level must be beginner, intermediate or advanced, got %q",
			ErrValidationFailed, p.ExpertiseLevel)
	}
	return nil
}
