package engine

import (
	"context"
	"time"
)

// BackoffDelay computes the linear backoff before the next attempt:
// base after the first failure, 2x base after the second, and so on.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	return base * time.Duration(attempt+1)
}

// WaitForBackoff sleeps for the given delay or until the context is done,
// whichever comes first.
func WaitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
