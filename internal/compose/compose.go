// Package compose renders candidates and postings as single descriptive sentences for
// the embedding model. Output is a pure function of the input with a fixed clause order.
package compose

import (
	"fmt"
	"strings"

	"github.com/spigell/job-matcher/internal/jobs"
)

// Query renders a candidate as
// "Skills: a, b. Experience: N years. Preferences: p.".
// skills is the already expanded skill list.
func Query(profile jobs.CandidateProfile, skills []string) string {
	return join(
		clause("Skills", joinList(skills)),
		clause("Experience", fmt.Sprintf("%d years", profile.ExperienceYears)),
		clause("Preferences", profile.Preference),
	)
}

// Document renders a posting as
// "<title> at <company> in <location>. Skills: a, b. Type: <type>.".
// Empty head parts are left out together with their connector.
func Document(posting *jobs.JobPosting) string {
	if posting == nil {
		return ""
	}

	return join(
		head(posting),
		clause("Skills", joinList(posting.SkillsRequired)),
		clause("Type", string(posting.JobType)),
	)
}

func head(posting *jobs.JobPosting) string {
	parts := make([]string, 0, 5)
	if title := collapse(posting.Title); title != "" {
		parts = append(parts, title)
	}
	if company := collapse(posting.Company); company != "" {
		parts = append(parts, "at", company)
	}
	if location := collapse(posting.Location); location != "" {
		parts = append(parts, "in", location)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ") + "."
}

// Documents renders the whole catalog, index-aligned with the input.
func Documents(postings []*jobs.JobPosting) []string {
	out := make([]string, len(postings))
	for idx, posting := range postings {
		out[idx] = Document(posting)
	}
	return out
}

// clause renders "Label: value." and "Label:." for an empty value.
func clause(label, value string) string {
	value = collapse(value)
	if value == "" {
		return label + ":."
	}
	return label + ": " + value + "."
}

func joinList(items []string) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if item = collapse(item); item != "" {
			parts = append(parts, item)
		}
	}
	return strings.Join(parts, ", ")
}

func join(clauses ...string) string {
	return collapse(strings.Join(clauses, " "))
}

// collapse trims and squeezes internal whitespace to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
