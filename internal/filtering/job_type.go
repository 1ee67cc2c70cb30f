package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/jobs"
)

type jobTypeFilter struct {
	toggle
	strict bool
}

// NewJobType creates a filter that keeps postings compatible with the candidate's
// preferred job type. It only acts when strict job type matching is configured.
func NewJobType() Filter {
	return &jobTypeFilter{}
}

func (f *jobTypeFilter) Name() string { return "job_type" }

func (f *jobTypeFilter) Validate(cfg *Config) error {
	f.strict = cfg != nil && cfg.StrictJobType
	return nil
}

func (f *jobTypeFilter) Apply(_ context.Context, deps Deps, p *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := p.Len()
	if !f.strict || deps.Profile == nil {
		return p, unchanged(p), nil
	}

	preferred, err := jobs.ParseJobType(deps.Profile.Preference)
	if err != nil {
		deps.Logger.Info("preference is not a job type, keeping all postings",
			zap.String("preference", deps.Profile.Preference),
		)
		return p, unchanged(p), nil
	}

	if preferred == jobs.JobTypeAny {
		return p, unchanged(p), nil
	}

	removed := p.Keep(func(posting *jobs.JobPosting) bool {
		return posting.JobType == preferred || posting.JobType == jobs.JobTypeAny
	})
	if len(removed) > 0 {
		deps.Logger.Info("excluding postings by job type",
			zap.String("preferred", string(preferred)),
			zap.Strings("excluded_postings", removed),
			zap.Int("postings_left", p.Len()),
		)
	}

	return p, Step{Initial: initial, Dropped: len(removed), Left: p.Len()}, nil
}

func (f *jobTypeFilter) Status() Status {
	details := map[string]string{}
	if f.strict {
		details["strict"] = "true"
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
