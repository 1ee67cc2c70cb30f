// Package rank scores postings against a candidate embedding and keeps the best K.
package rank

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/spigell/job-matcher/internal/embedding"
	"github.com/spigell/job-matcher/internal/jobs"
)

// Cosine returns dot(a, b) / (|a| * |b|), accumulated in float64.
// If either vector has zero magnitude the similarity is undefined and Cosine returns 0.
// Vectors of different length cannot be compared and yield ErrInternalInconsistency.
func Cosine(a, b embedding.Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: vector dimensions differ (%d vs %d)", jobs.ErrInternalInconsistency, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	score := dot / math.Sqrt(normA*normB)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, nil
	}

	// Rounding may push parallel vectors slightly past the theoretical bounds.
	return math.Max(-1, math.Min(1, score)), nil
}

// Rank scores every posting against query, sorts by descending score and returns at
// most k entries. documents[i] must be the embedding of postings[i]. Equal scores keep
// catalog order.
func Rank(query embedding.Vector, documents []embedding.Vector, postings []*jobs.JobPosting, k int) ([]jobs.ScoredPosting, error) {
	if len(documents) != len(postings) {
		return nil, fmt.Errorf("%w: %d document vectors for %d postings", jobs.ErrInternalInconsistency, len(documents), len(postings))
	}

	if k <= 0 || len(postings) == 0 {
		return []jobs.ScoredPosting{}, nil
	}

	scored := make([]jobs.ScoredPosting, len(postings))
	for idx, posting := range postings {
		if posting == nil {
			return nil, fmt.Errorf("%w: posting %d is nil", jobs.ErrInternalInconsistency, idx)
		}

		score, err := Cosine(query, documents[idx])
		if err != nil {
			return nil, fmt.Errorf("posting %s: %w", posting.ID, err)
		}

		scored[idx] = jobs.ScoredPosting{JobPosting: *posting, Score: score}
	}

	slices.SortStableFunc(scored, func(a, b jobs.ScoredPosting) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if k < len(scored) {
		scored = scored[:k]
	}

	return scored, nil
}
