package filtering

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-matcher/internal/jobs"
)

func catalog() *jobs.Postings {
	return &jobs.Postings{Items: []*jobs.JobPosting{
		{ID: "1", Title: "Data Engineer", Company: "Acme", JobType: jobs.JobTypeRemote},
		{ID: "2", Title: "Backend Developer", Company: "Globex", JobType: jobs.JobTypeOnsite},
		{ID: "3", Title: "SRE", Company: "Initech", JobType: jobs.JobTypeAny},
		{ID: "4", Title: "Analyst", Company: "acme", JobType: jobs.JobTypeOnsite},
	}}
}

func ids(p *jobs.Postings) []string {
	out := make([]string, 0, p.Len())
	for _, posting := range p.Items {
		out = append(out, posting.ID)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRunAppliesFilters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	excludeFile := filepath.Join(dir, "excluded.json")
	excluded := &jobs.ExcludedPostings{Items: []*jobs.ExcludedPosting{{ID: "2"}}}
	if err := excluded.ToFile(excludeFile); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	tests := []struct {
		name    string
		cfg     *Config
		profile *jobs.CandidateProfile
		want    []string
	}{
		{
			name: "no configuration keeps everything",
			cfg:  &Config{},
			want: []string{"1", "2", "3", "4"},
		},
		{
			name: "companies are matched case-insensitively",
			cfg:  &Config{Companies: []string{"ACME", " "}},
			want: []string{"2", "3"},
		},
		{
			name: "exclude file",
			cfg:  &Config{ExcludeFile: excludeFile},
			want: []string{"1", "3", "4"},
		},
		{
			name: "missing exclude file is ignored",
			cfg:  &Config{ExcludeFile: filepath.Join(dir, "absent.json")},
			want: []string{"1", "2", "3", "4"},
		},
		{
			name:    "strict job type keeps matching and any",
			cfg:     &Config{StrictJobType: true},
			profile: &jobs.CandidateProfile{Name: "Ada", Preference: "remote"},
			want:    []string{"1", "3"},
		},
		{
			name:    "non strict job type keeps everything",
			cfg:     &Config{},
			profile: &jobs.CandidateProfile{Name: "Ada", Preference: "remote"},
			want:    []string{"1", "2", "3", "4"},
		},
		{
			name:    "free text preference keeps everything",
			cfg:     &Config{StrictJobType: true},
			profile: &jobs.CandidateProfile{Name: "Ada", Preference: "near the sea"},
			want:    []string{"1", "2", "3", "4"},
		},
		{
			name:    "all filters combined",
			cfg:     &Config{Companies: []string{"initech"}, ExcludeFile: excludeFile, StrictJobType: true},
			profile: &jobs.CandidateProfile{Name: "Ada", Preference: "onsite"},
			want:    []string{"4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Run(context.Background(), tt.cfg, Deps{Profile: tt.profile}, Defaults(), catalog())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !equal(ids(got), tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, ids(got))
			}
		})
	}
}

func TestRunSkipsDisabledFilters(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.InfoLevel)

	steps := Defaults()
	if !DisableByName(steps, "companies", "disabled by flag") {
		t.Fatalf("expected companies filter to be found")
	}
	if DisableByName(steps, "salary", "disabled by flag") {
		t.Fatalf("expected unknown filter to be reported as missing")
	}

	got, err := Run(context.Background(), &Config{Companies: []string{"Acme"}}, Deps{Logger: zap.New(core)}, steps, catalog())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Len() != 4 {
		t.Fatalf("expected disabled filter to keep all postings, got %d", got.Len())
	}

	disabled := observed.FilterMessage("filter disabled").All()
	if len(disabled) != 1 || disabled[0].ContextMap()["name"] != "companies" {
		t.Fatalf("expected companies filter to be reported as disabled, got %+v", disabled)
	}

	if n := observed.FilterMessage("filter step").Len(); n != 2 {
		t.Fatalf("expected 2 executed steps, got %d", n)
	}

	statuses := Describe(steps)
	if statuses[0].Enabled || statuses[0].Reason != "disabled by flag" {
		t.Fatalf("unexpected status for disabled filter: %+v", statuses[0])
	}
}

type failingFilter struct{ toggle }

func (f *failingFilter) Name() string { return "failing" }

func (f *failingFilter) Validate(*Config) error { return errors.New("bad config") }

func (f *failingFilter) Apply(context.Context, Deps, *jobs.Postings) (*jobs.Postings, Step, error) {
	return nil, Step{}, nil
}

func TestRunStopsOnValidationError(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), &Config{}, Deps{}, []Filter{NewCompanies(), &failingFilter{}}, catalog())
	if err == nil || err.Error() != "failing: bad config" {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDescribeReportsDetails(t *testing.T) {
	t.Parallel()

	steps := Defaults()
	cfg := &Config{Companies: []string{"Acme", "Globex"}, ExcludeFile: "excluded.json", StrictJobType: true}
	for _, step := range steps {
		if err := step.Validate(cfg); err != nil {
			t.Fatalf("validate %s: %v", step.Name(), err)
		}
	}

	statuses := Describe(steps)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if statuses[0].Details["companies"] != "Acme,Globex" {
		t.Fatalf("unexpected companies details: %+v", statuses[0].Details)
	}
	if statuses[1].Details["path"] != "excluded.json" {
		t.Fatalf("unexpected exclude file details: %+v", statuses[1].Details)
	}
	if statuses[2].Details["strict"] != "true" {
		t.Fatalf("unexpected job type details: %+v", statuses[2].Details)
	}
}
