// Package embedding defines the contract between the matcher and a remote text
// embedding provider, plus provider-independent helpers and decorators.
package embedding

import (
	"context"
	"fmt"

	"github.com/spigell/job-matcher/internal/jobs"
)

// Role tells providers that distinguish them whether a text is a search query or a
// searchable document.
type Role string

const (
	RoleQuery    Role = "query"
	RoleDocument Role = "document"
)

// Vector is one embedding. All vectors compared in a single ranking pass must come
// from the same model and share one length.
type Vector []float32

// Embedder turns a batch of texts into one vector per text, in input order.
// Implementations return errors matching jobs.ErrInvalidInput,
// jobs.ErrProviderUnavailable or jobs.ErrProviderRejected.
type Embedder interface {
	Embed(ctx context.Context, texts []string, role Role) ([]Vector, error)
}

// Func adapts a plain function to the Embedder interface.
type Func func(ctx context.Context, texts []string, role Role) ([]Vector, error)

func (f Func) Embed(ctx context.Context, texts []string, role Role) ([]Vector, error) {
	return f(ctx, texts, role)
}

// Validate rejects requests that must never reach a provider.
func Validate(texts []string, role Role) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts to embed", jobs.ErrInvalidInput)
	}

	switch role {
	case RoleQuery, RoleDocument:
	default:
		return fmt.Errorf("%w: unknown embedding role %q", jobs.ErrInvalidInput, role)
	}

	return nil
}

// CheckBatch verifies a provider response: one non-empty vector per input and a
// single shared dimensionality.
func CheckBatch(texts []string, vectors []Vector) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: got %d vectors for %d texts", jobs.ErrProviderRejected, len(vectors), len(texts))
	}

	dim := -1
	for idx, vector := range vectors {
		if len(vector) == 0 {
			return fmt.Errorf("%w: empty vector at index %d", jobs.ErrProviderRejected, idx)
		}
		if dim == -1 {
			dim = len(vector)
			continue
		}
		if len(vector) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d", jobs.ErrProviderRejected, idx, len(vector), dim)
		}
	}

	return nil
}

// FromFloat64 converts provider output that uses float64 components.
func FromFloat64(values []float64) Vector {
	vector := make(Vector, len(values))
	for idx, value := range values {
		vector[idx] = float32(value)
	}
	return vector
}
