package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		class     Class
		retryable bool
	}{
		{name: "nil", err: nil, class: ""},
		{name: "invalid input", err: fmt.Errorf("%w: name is required", ErrInvalidInput), class: ClassBadRequest},
		{name: "unavailable", err: fmt.Errorf("%w: %w", ErrMatchFailed, ErrProviderUnavailable), class: ClassUnavailable, retryable: true},
		{name: "rejected", err: fmt.Errorf("%w: %w", ErrMatchFailed, ErrProviderRejected), class: ClassUnavailable},
		{name: "inconsistency", err: fmt.Errorf("%w: %w", ErrMatchFailed, ErrInternalInconsistency), class: ClassInternal},
		{name: "unknown", err: errors.New("boom"), class: ClassInternal},
		{name: "cancelled", err: fmt.Errorf("%w: %w", ErrMatchFailed, context.Canceled), class: ClassInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Classify(tt.err); got != tt.class {
				t.Fatalf("expected class %q, got %q", tt.class, got)
			}
			if got := Retryable(tt.err); got != tt.retryable {
				t.Fatalf("expected retryable %v, got %v", tt.retryable, got)
			}
		})
	}
}
