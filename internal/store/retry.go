package store

import (
	"context"
	"time"
)

// RetryBackoff is the fixed backoff schedule spec.md §7 mandates for a
// StoreUnavailable condition: three retries at 100ms, 300ms, 900ms,
// terminal after that.
var RetryBackoff = []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 900 * time.Millisecond}

// WithRetry calls fn, retrying on error per RetryBackoff (an initial
// call plus up to three retries). It returns the last error if every
// attempt fails, or ctx.Err() if ctx is cancelled while waiting between
// attempts.
func WithRetry(ctx context.Context, fn func() error) error {
	err := fn()
	for _, delay := range RetryBackoff {
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		err = fn()
	}
	return err
}
