package jobs

import (
	"errors"
)

// Error kinds shared by every stage of a match. Callers test for them with errors.Is;
// the stages wrap them with context via fmt.Errorf or errors.Join.
var (
	// ErrInvalidInput marks client-fixable input: missing name, empty skills, empty batch to embed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProviderUnavailable marks transient provider failures: network, timeout, 5xx.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrProviderRejected marks likely-permanent provider failures: bad request, auth, quota.
	ErrProviderRejected = errors.New("embedding provider rejected request")
	// ErrInternalInconsistency marks a broken invariant such as misaligned vectors and postings.
	ErrInternalInconsistency = errors.New("internal inconsistency")
	// ErrMatchFailed wraps every non-validation failure surfaced by the matcher.
	ErrMatchFailed = errors.New("match failed")
)

// Class is the outer-boundary category of an error.
type Class string

const (
	ClassBadRequest  Class = "bad_request"
	ClassUnavailable Class = "unavailable"
	ClassInternal    Class = "internal"
)

// Classify maps an error returned by the matcher to the response class the
// surrounding service layer should use. A nil error has no class. Both provider kinds
// are unavailable: the dependency failed either way. Retryable tells them apart.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return ClassBadRequest
	case errors.Is(err, ErrInternalInconsistency):
		return ClassInternal
	case errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrProviderRejected):
		return ClassUnavailable
	default:
		return ClassInternal
	}
}

// Retryable reports whether the caller may reasonably retry the request later.
func Retryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) && !errors.Is(err, ErrProviderRejected)
}
