package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	PostingIDField      = "ID"
	PostingCompanyField = "Company"
)

// JobType is the closed set of work arrangements a posting may declare.
type JobType string

const (
	JobTypeRemote JobType = "remote"
	JobTypeOnsite JobType = "onsite"
	JobTypeAny    JobType = "any"
)

// ParseJobType normalises raw input. Empty input defaults to JobTypeAny.
func ParseJobType(raw string) (JobType, error) {
	switch t := JobType(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return JobTypeAny, nil
	case JobTypeRemote, JobTypeOnsite, JobTypeAny:
		return t, nil
	default:
		return "", fmt.Errorf("%w: job type %q must be one of remote, onsite, any", ErrInvalidInput, raw)
	}
}

type JobPosting struct {
	ID             string   `json:"id,omitempty" mapstructure:"id"`
	Title          string   `json:"title" mapstructure:"title"`
	Company        string   `json:"company" mapstructure:"company"`
	Location       string   `json:"location" mapstructure:"location"`
	SkillsRequired []string `json:"skillsRequired" mapstructure:"skillsRequired"`
	JobType        JobType  `json:"jobType" mapstructure:"jobType"`
}

// ScoredPosting is a posting annotated with its similarity to the candidate.
type ScoredPosting struct {
	JobPosting
	Score float64 `json:"score"`
}

// MatchResult is what a match request returns: up to TopK postings ordered by score.
type MatchResult struct {
	Candidate string          `json:"candidate"`
	Matches   []ScoredPosting `json:"matches"`
}

// Postings is an ordered catalog of job postings. Order is significant: it breaks
// ties between equally scored postings.
type Postings struct {
	Items []*JobPosting `json:"items"`
}

type ExcludedPostings struct {
	Items []*ExcludedPosting
}

type ExcludedPosting struct {
	ID         string
	Title      string
	Company    string
	ExcludedAt time.Time
}

func (p *Postings) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}

// Snapshot returns a copy of the item slice so the caller can hand a stable view
// of the catalog to a single match request.
func (p *Postings) Snapshot() []*JobPosting {
	if p == nil {
		return nil
	}
	snapshot := make([]*JobPosting, len(p.Items))
	copy(snapshot, p.Items)
	return snapshot
}

func (p *Postings) FindByID(id string) *JobPosting {
	for _, posting := range p.Items {
		if posting.ID == id {
			return posting
		}
	}
	return nil
}

func (jp *JobPosting) GetStringField(name string) string {
	switch name {
	case PostingIDField:
		return jp.ID
	case PostingCompanyField:
		return jp.Company
	default:
		return ""
	}
}

// Exclude removes postings whose field matches any of the targets (case-insensitive)
// and returns the removed IDs. The relative order of the remaining postings is kept.
func (p *Postings) Exclude(name string, targets []string) []string {
	if len(targets) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		set[strings.ToLower(strings.TrimSpace(target))] = struct{}{}
	}

	var excluded []string
	kept := p.Items[:0]
	for _, posting := range p.Items {
		if _, ok := set[strings.ToLower(posting.GetStringField(name))]; ok {
			excluded = append(excluded, posting.ID)
			continue
		}
		kept = append(kept, posting)
	}

	for idx := len(kept); idx < len(p.Items); idx++ {
		p.Items[idx] = nil
	}
	p.Items = kept

	return excluded
}

// Keep retains only the postings accepted by fn and returns the removed IDs.
func (p *Postings) Keep(fn func(*JobPosting) bool) []string {
	var removed []string
	kept := make([]*JobPosting, 0, len(p.Items))
	for _, posting := range p.Items {
		if fn(posting) {
			kept = append(kept, posting)
			continue
		}
		removed = append(removed, posting.ID)
	}
	p.Items = kept
	return removed
}

// ReportByCompany groups postings by company for a quick overview.
func (p *Postings) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, posting := range p.Items {
		report[posting.Company] = append(report[posting.Company], map[string]string{
			"id":       posting.ID,
			"title":    posting.Title,
			"location": posting.Location,
			"type":     string(posting.JobType),
			"skills":   strings.Join(posting.SkillsRequired, ", "),
		})
	}
	return report
}

func (p *Postings) ToExcluded() *ExcludedPostings {
	excluded := &ExcludedPostings{}
	for _, posting := range p.Items {
		excluded.Items = append(excluded.Items, &ExcludedPosting{
			ID:         posting.ID,
			Title:      posting.Title,
			Company:    posting.Company,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

func GetExcludedPostingsFromFile(path string) (*ExcludedPostings, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedPostings{}, nil
	}

	var excluded ExcludedPostings
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

func (e *ExcludedPostings) Append(s *ExcludedPostings) {
	e.Items = append(e.Items, s.Items...)
}

func (e *ExcludedPostings) PostingIDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, posting := range e.Items {
		ids = append(ids, posting.ID)
	}
	return ids
}

func (e *ExcludedPostings) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}
