package jobs

import (
	"fmt"
	"strings"
)

// CandidateProfile is the candidate side of a match request. The matcher only reads it.
type CandidateProfile struct {
	Name            string   `json:"name" mapstructure:"name"`
	ExperienceYears int      `json:"experience" mapstructure:"experience"`
	Skills          []string `json:"skills" mapstructure:"skills"`
	Preference      string   `json:"preferences" mapstructure:"preferences"`
}

// Validate enforces the business rules for a matchable profile: a name and at least
// one non-blank skill are required.
func (p *CandidateProfile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: profile is required", ErrInvalidInput)
	}

	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	if len(p.Skills) == 0 {
		return fmt.Errorf("%w: at least one skill is required", ErrInvalidInput)
	}

	for idx, skill := range p.Skills {
		if strings.TrimSpace(skill) == "" {
			return fmt.Errorf("%w: skill #%d is empty", ErrInvalidInput, idx+1)
		}
	}

	if p.ExperienceYears < 0 {
		return fmt.Errorf("%w: experience must not be negative", ErrInvalidInput)
	}

	return nil
}

// ParseSkills splits a comma separated list, dropping blank entries.
func ParseSkills(raw string) []string {
	skills := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if skill := strings.TrimSpace(part); skill != "" {
			skills = append(skills, skill)
		}
	}
	return skills
}
