package utils

import (
	"context"
	"time"
)

var sleep = time.Sleep

// WaitFor blocks for d or until ctx is done, whichever comes first.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// NextBackoff doubles current, capped at limit. A non-positive current starts at one
// millisecond.
func NextBackoff(current, limit time.Duration) time.Duration {
	if current <= 0 {
		current = time.Millisecond / 2
	}
	next := current * 2
	if limit > 0 && (next > limit || next < current) {
		return limit
	}
	return next
}
