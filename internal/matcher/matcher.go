// Package matcher drives one match request: expand skills, compose texts, fetch the
// query and document embeddings concurrently, then rank.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-matcher/internal/compose"
	"github.com/spigell/job-matcher/internal/embedding"
	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/rank"
	"github.com/spigell/job-matcher/internal/utils"
)

const (
	DefaultTopK         = 3
	defaultMaxLogLength = 200
)

// Config tunes ranking. Zero values select the defaults.
type Config struct {
	TopK         int     `mapstructure:"top-k"`
	MinScore     float64 `mapstructure:"minimum-score"`
	MaxLogLength int     `mapstructure:"max-log-length"`
}

// Matcher holds no per-request state and is safe for concurrent use.
type Matcher struct {
	embedder  embedding.Embedder
	expander  skillExpander
	topK      int
	minScore  float64
	maxLogLen int
	logger    *zap.Logger
}

type skillExpander interface {
	Expand(skills []string) []string
}

func New(embedder embedding.Embedder, expander skillExpander, logger *zap.Logger, cfg Config) *Matcher {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MinScore < 0 {
		cfg.MinScore = 0
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Matcher{
		embedder:  embedder,
		expander:  expander,
		topK:      cfg.TopK,
		minScore:  cfg.MinScore,
		maxLogLen: cfg.MaxLogLength,
		logger:    logger,
	}
}

// Match ranks catalog against profile and returns at most TopK postings. catalog must
// be a snapshot that nobody mutates during the call.
//
// Invalid profiles fail with jobs.ErrInvalidInput before any provider call. Every
// other failure is wrapped in jobs.ErrMatchFailed with the cause preserved.
func (m *Matcher) Match(ctx context.Context, profile jobs.CandidateProfile, catalog []*jobs.JobPosting) (*jobs.MatchResult, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	for idx, posting := range catalog {
		if posting == nil {
			return nil, fmt.Errorf("%w: catalog entry %d is nil", jobs.ErrInvalidInput, idx)
		}
	}

	log := logger.WithFields(m.logger, logger.MatchFields(uuid.NewString(), profile.Name)...)

	result := &jobs.MatchResult{Candidate: profile.Name, Matches: []jobs.ScoredPosting{}}
	if len(catalog) == 0 {
		log.Info("catalog is empty, nothing to match")
		return result, nil
	}

	var expanded []string
	if m.expander != nil {
		expanded = m.expander.Expand(profile.Skills)
	} else {
		expanded = profile.Skills
	}

	query := compose.Query(profile, expanded)
	documents := compose.Documents(catalog)

	log.Debug("composed query",
		zap.Int("skills", len(profile.Skills)),
		zap.Int("expanded_skills", len(expanded)),
		zap.Int("query_length", utf8.RuneCountInString(query)),
		zap.String("query_preview", utils.Preview(query, m.maxLogLen)),
	)

	queryVector, documentVectors, err := m.embed(ctx, query, documents)
	if err != nil {
		return nil, m.fail(log, err)
	}

	ranked, err := rank.Rank(queryVector, documentVectors, catalog, m.topK)
	if err != nil {
		return nil, m.fail(log, err)
	}

	if m.minScore > 0 {
		kept := ranked[:0]
		for _, scored := range ranked {
			if scored.Score < m.minScore {
				log.Debug("dropping match below minimum score",
					zap.String("posting_id", scored.ID),
					zap.Float64("score", scored.Score),
					zap.Float64("threshold", m.minScore),
				)
				continue
			}
			kept = append(kept, scored)
		}
		ranked = kept
	}

	result.Matches = ranked

	log.Info("match finished",
		zap.Int("catalog", len(catalog)),
		zap.Int("matches", len(ranked)),
	)

	return result, nil
}

// embed issues the query and document requests concurrently. The first failure
// cancels the other request.
func (m *Matcher) embed(ctx context.Context, query string, documents []string) (embedding.Vector, []embedding.Vector, error) {
	var (
		queryVectors    []embedding.Vector
		documentVectors []embedding.Vector
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vectors, err := m.embedder.Embed(gctx, []string{query}, embedding.RoleQuery)
		if err != nil {
			return fmt.Errorf("embedding query: %w", err)
		}
		queryVectors = vectors
		return nil
	})

	g.Go(func() error {
		vectors, err := m.embedder.Embed(gctx, documents, embedding.RoleDocument)
		if err != nil {
			return fmt.Errorf("embedding %d documents: %w", len(documents), err)
		}
		documentVectors = vectors
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// A late cancellation must not produce a result.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	if len(queryVectors) != 1 {
		return nil, nil, fmt.Errorf("%w: expected 1 query vector, got %d", jobs.ErrInternalInconsistency, len(queryVectors))
	}

	return queryVectors[0], documentVectors, nil
}

func (m *Matcher) fail(log *zap.Logger, err error) error {
	if errors.Is(err, jobs.ErrInternalInconsistency) {
		log.Error("match invariant broken", zap.Error(err))
	} else {
		log.Warn("match failed",
			zap.String("class", string(jobs.Classify(err))),
			zap.Bool("retryable", jobs.Retryable(err)),
			zap.Error(err),
		)
	}
	return fmt.Errorf("%w: %w", jobs.ErrMatchFailed, err)
}
