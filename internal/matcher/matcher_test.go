package matcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-matcher/internal/embedding"
	"github.com/spigell/job-matcher/internal/jobs"
	"github.com/spigell/job-matcher/internal/skills"
)

// keywordEmbedder maps any text mentioning both SQL and AWS to [1,0] and everything
// else to [0,1].
type keywordEmbedder struct {
	calls atomic.Int32
	roles sync.Map
}

func (k *keywordEmbedder) Embed(_ context.Context, texts []string, role embedding.Role) ([]embedding.Vector, error) {
	k.calls.Add(1)
	k.roles.Store(role, texts)

	vectors := make([]embedding.Vector, len(texts))
	for idx, text := range texts {
		if strings.Contains(text, "SQL") && strings.Contains(text, "AWS") {
			vectors[idx] = embedding.Vector{1, 0}
			continue
		}
		vectors[idx] = embedding.Vector{0, 1}
	}
	return vectors, nil
}

func adaProfile() jobs.CandidateProfile {
	return jobs.CandidateProfile{
		Name:            "Ada",
		Skills:          []string{"SQL", "AWS"},
		ExperienceYears: 3,
		Preference:      "remote",
	}
}

func adaCatalog() []*jobs.JobPosting {
	return []*jobs.JobPosting{
		{ID: "1", Title: "Barista", Company: "Beans", Location: "Oslo", SkillsRequired: []string{"Coffee"}, JobType: jobs.JobTypeOnsite},
		{ID: "2", Title: "Data Engineer", Company: "Acme", Location: "Remote", SkillsRequired: []string{"SQL", "AWS"}, JobType: jobs.JobTypeRemote},
		{ID: "3", Title: "Gardener", Company: "Green", Location: "Rome", SkillsRequired: []string{"Plants"}, JobType: jobs.JobTypeAny},
		{ID: "4", Title: "Chef", Company: "Kitchen", Location: "Paris", SkillsRequired: []string{"Cooking"}, JobType: jobs.JobTypeOnsite},
	}
}

func TestMatchEndToEnd(t *testing.T) {
	t.Parallel()

	embedder := &keywordEmbedder{}
	m := New(embedder, skills.NewExpander(nil), zap.NewNop(), Config{})

	result, err := m.Match(context.Background(), adaProfile(), adaCatalog())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Candidate != "Ada" {
		t.Fatalf("expected candidate Ada, got %q", result.Candidate)
	}

	if len(result.Matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(result.Matches))
	}

	wantIDs := []string{"2", "1", "3"}
	wantScores := []float64{1, 0, 0}
	for idx, match := range result.Matches {
		if match.ID != wantIDs[idx] {
			t.Fatalf("match %d: expected id %s, got %s", idx, wantIDs[idx], match.ID)
		}
		if match.Score != wantScores[idx] {
			t.Fatalf("match %d: expected score %v, got %v", idx, wantScores[idx], match.Score)
		}
	}

	if got := embedder.calls.Load(); got != 2 {
		t.Fatalf("expected 2 embedding calls, got %d", got)
	}

	raw, ok := embedder.roles.Load(embedding.RoleQuery)
	if !ok {
		t.Fatalf("expected a query embedding call")
	}
	query := raw.([]string)
	if len(query) != 1 || !strings.Contains(query[0], "cloud, s3") {
		t.Fatalf("expected expanded query, got %v", query)
	}

	raw, ok = embedder.roles.Load(embedding.RoleDocument)
	if !ok {
		t.Fatalf("expected a document embedding call")
	}
	if docs := raw.([]string); len(docs) != 4 {
		t.Fatalf("expected 4 documents in one batch, got %d", len(docs))
	}
}

func TestMatchIsIdempotent(t *testing.T) {
	t.Parallel()

	m := New(&keywordEmbedder{}, skills.NewExpander(nil), zap.NewNop(), Config{})
	catalog := adaCatalog()

	first, err := m.Match(context.Background(), adaProfile(), catalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Match(context.Background(), adaProfile(), catalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first.Matches) != len(second.Matches) {
		t.Fatalf("match counts differ: %d vs %d", len(first.Matches), len(second.Matches))
	}
	for idx := range first.Matches {
		if first.Matches[idx].ID != second.Matches[idx].ID || first.Matches[idx].Score != second.Matches[idx].Score {
			t.Fatalf("match %d differs: %+v vs %+v", idx, first.Matches[idx], second.Matches[idx])
		}
	}
}

func TestMatchRejectsInvalidProfileWithoutCalls(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		profile jobs.CandidateProfile
	}{
		{name: "empty skills", profile: jobs.CandidateProfile{Name: "Ada"}},
		{name: "empty name", profile: jobs.CandidateProfile{Skills: []string{"SQL"}}},
		{name: "blank skill", profile: jobs.CandidateProfile{Name: "Ada", Skills: []string{" "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			embedder := &keywordEmbedder{}
			m := New(embedder, nil, nil, Config{})

			_, err := m.Match(context.Background(), tt.profile, adaCatalog())
			if !errors.Is(err, jobs.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if errors.Is(err, jobs.ErrMatchFailed) {
				t.Fatalf("validation errors must not be wrapped in ErrMatchFailed: %v", err)
			}
			if got := embedder.calls.Load(); got != 0 {
				t.Fatalf("expected no embedding calls, got %d", got)
			}
		})
	}
}

func TestMatchRejectsNilCatalogEntry(t *testing.T) {
	t.Parallel()

	embedder := &keywordEmbedder{}
	m := New(embedder, nil, nil, Config{})

	_, err := m.Match(context.Background(), adaProfile(), []*jobs.JobPosting{nil})
	if !errors.Is(err, jobs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if got := embedder.calls.Load(); got != 0 {
		t.Fatalf("expected no embedding calls, got %d", got)
	}
}

func TestMatchEmptyCatalog(t *testing.T) {
	t.Parallel()

	embedder := &keywordEmbedder{}
	m := New(embedder, nil, nil, Config{})

	result, err := m.Match(context.Background(), adaProfile(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matches == nil || len(result.Matches) != 0 {
		t.Fatalf("expected empty non-nil matches, got %#v", result.Matches)
	}
	if got := embedder.calls.Load(); got != 0 {
		t.Fatalf("expected no embedding calls, got %d", got)
	}
}

func TestMatchTopKAndMinScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantIDs []string
	}{
		{name: "top 1", cfg: Config{TopK: 1}, wantIDs: []string{"2"}},
		{name: "top larger than catalog", cfg: Config{TopK: 10}, wantIDs: []string{"2", "1", "3", "4"}},
		{name: "minimum score drops zeros", cfg: Config{MinScore: 0.5}, wantIDs: []string{"2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := New(&keywordEmbedder{}, nil, nil, tt.cfg)
			result, err := m.Match(context.Background(), adaProfile(), adaCatalog())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(result.Matches) != len(tt.wantIDs) {
				t.Fatalf("expected %d matches, got %d", len(tt.wantIDs), len(result.Matches))
			}
			for idx, id := range tt.wantIDs {
				if result.Matches[idx].ID != id {
					t.Fatalf("match %d: expected %s, got %s", idx, id, result.Matches[idx].ID)
				}
			}
		})
	}
}

func TestMatchWrapsProviderErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cause error
		class jobs.Class
	}{
		{name: "unavailable", cause: jobs.ErrProviderUnavailable, class: jobs.ClassUnavailable},
		{name: "rejected", cause: jobs.ErrProviderRejected, class: jobs.ClassUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			embedder := embedding.Func(func(_ context.Context, texts []string, role embedding.Role) ([]embedding.Vector, error) {
				if role == embedding.RoleDocument {
					return nil, errors.Join(tt.cause, errors.New("boom"))
				}
				return []embedding.Vector{{1, 0}}, nil
			})

			m := New(embedder, nil, nil, Config{})
			result, err := m.Match(context.Background(), adaProfile(), adaCatalog())
			if result != nil {
				t.Fatalf("expected no partial result, got %+v", result)
			}
			if !errors.Is(err, jobs.ErrMatchFailed) {
				t.Fatalf("expected ErrMatchFailed, got %v", err)
			}
			if !errors.Is(err, tt.cause) {
				t.Fatalf("expected cause %v to be preserved, got %v", tt.cause, err)
			}
			if got := jobs.Classify(err); got != tt.class {
				t.Fatalf("expected class %s, got %s", tt.class, got)
			}
		})
	}
}

func TestMatchLogsInconsistency(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.ErrorLevel)

	// Returns one vector too few for the document batch.
	embedder := embedding.Func(func(_ context.Context, texts []string, role embedding.Role) ([]embedding.Vector, error) {
		vectors := make([]embedding.Vector, len(texts))
		for idx := range vectors {
			vectors[idx] = embedding.Vector{1, 0}
		}
		if role == embedding.RoleDocument {
			return vectors[1:], nil
		}
		return vectors, nil
	})

	m := New(embedder, nil, zap.New(core), Config{})
	_, err := m.Match(context.Background(), adaProfile(), adaCatalog())
	if !errors.Is(err, jobs.ErrInternalInconsistency) || !errors.Is(err, jobs.ErrMatchFailed) {
		t.Fatalf("expected wrapped ErrInternalInconsistency, got %v", err)
	}
	if jobs.Classify(err) != jobs.ClassInternal {
		t.Fatalf("expected internal class, got %s", jobs.Classify(err))
	}

	if observed.FilterMessage("match invariant broken").Len() != 1 {
		t.Fatalf("expected the inconsistency to be logged at error level")
	}
}

func TestMatchIssuesEmbeddingsConcurrently(t *testing.T) {
	t.Parallel()

	var arrived sync.WaitGroup
	arrived.Add(2)
	both := make(chan struct{})
	go func() {
		arrived.Wait()
		close(both)
	}()

	// Each call waits until the other one has started.
	embedder := embedding.Func(func(ctx context.Context, texts []string, _ embedding.Role) ([]embedding.Vector, error) {
		arrived.Done()
		select {
		case <-both:
		case <-time.After(5 * time.Second):
			return nil, errors.New("calls were not issued concurrently")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		vectors := make([]embedding.Vector, len(texts))
		for idx := range vectors {
			vectors[idx] = embedding.Vector{1, 1}
		}
		return vectors, nil
	})

	m := New(embedder, nil, nil, Config{})
	if _, err := m.Match(context.Background(), adaProfile(), adaCatalog()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMatchCancellationPropagates(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	var cancelled atomic.Int32
	embedder := embedding.Func(func(ctx context.Context, _ []string, role embedding.Role) ([]embedding.Vector, error) {
		if role == embedding.RoleQuery {
			cancel()
		}
		<-ctx.Done()
		cancelled.Add(1)
		return nil, errors.Join(jobs.ErrProviderUnavailable, ctx.Err())
	})

	m := New(embedder, nil, nil, Config{})
	_, err := m.Match(ctx, adaProfile(), adaCatalog())
	if !errors.Is(err, jobs.ErrMatchFailed) {
		t.Fatalf("expected ErrMatchFailed, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if got := cancelled.Load(); got != 2 {
		t.Fatalf("expected both calls to observe cancellation, got %d", got)
	}
}

func TestMatchFailureCancelsSiblingCall(t *testing.T) {
	t.Parallel()

	var siblingCancelled atomic.Bool
	embedder := embedding.Func(func(ctx context.Context, _ []string, role embedding.Role) ([]embedding.Vector, error) {
		if role == embedding.RoleQuery {
			return nil, jobs.ErrProviderRejected
		}
		select {
		case <-ctx.Done():
			siblingCancelled.Store(true)
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return nil, errors.New("sibling was not cancelled")
		}
	})

	m := New(embedder, nil, nil, Config{})
	_, err := m.Match(context.Background(), adaProfile(), adaCatalog())
	if !errors.Is(err, jobs.ErrProviderRejected) {
		t.Fatalf("expected ErrProviderRejected, got %v", err)
	}
	if !siblingCancelled.Load() {
		t.Fatalf("expected document call to be cancelled")
	}
}
