// Package skills widens a candidate's skill list with related terms so that postings
// using different vocabulary for the same competency still embed close to the query.
package skills

import (
	"strings"
)

// DefaultSynonyms maps a lower-case canonical skill to related terms.
var DefaultSynonyms = map[string][]string{
	"data engineering": {"etl", "pipelines", "big data"},
	"aws":              {"cloud", "s3"},
	"airflow":          {"workflow orchestration"},
}

// Expander appends synonyms after each known skill. It holds no mutable state after
// construction and is safe for concurrent use.
type Expander struct {
	synonyms map[string][]string
}

// NewExpander builds an expander from the default table merged with extra entries.
// Extra entries replace defaults with the same canonical key.
func NewExpander(extra map[string][]string) *Expander {
	synonyms := make(map[string][]string, len(DefaultSynonyms)+len(extra))
	for _, table := range []map[string][]string{DefaultSynonyms, extra} {
		for skill, related := range table {
			key := normalize(skill)
			if key == "" {
				continue
			}
			terms := make([]string, 0, len(related))
			for _, term := range related {
				if term = strings.TrimSpace(term); term != "" {
					terms = append(terms, term)
				}
			}
			synonyms[key] = terms
		}
	}

	return &Expander{synonyms: synonyms}
}

// Expand returns every input skill, in order, each followed by its synonyms.
// Unknown skills pass through unchanged. Duplicates are kept.
func (e *Expander) Expand(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		out = append(out, skill)
		out = append(out, e.related(skill)...)
	}
	return out
}

// related returns the terms registered for skill. The result aliases the table and
// must not be modified.
func (e *Expander) related(skill string) []string {
	if e == nil {
		return nil
	}
	return e.synonyms[normalize(skill)]
}

func normalize(skill string) string {
	return strings.ToLower(strings.Join(strings.Fields(skill), " "))
}
