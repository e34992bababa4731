// Package exchange adapts the on-chain data source into normalized
// per-exchange pool readings, with bounded retry.
package exchange

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy retries an operation up to MaxAttempts times, sleeping
// Backoff(attempt) between attempts. The same policy is applied uniformly to
// every external read the scanner performs.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// LinearBackoff returns a backoff function that waits attempt × step, i.e.
// 1×step after the first failure, 2×step after the second, and so on.
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// permanentError marks a failure that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that RetryPolicy.Do stops immediately instead of
// retrying. Use it for failures that indicate misconfiguration rather than a
// transient condition.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, returns a permanent error, the attempt
// budget is exhausted, or ctx is cancelled. It returns the last error
// observed, unwrapped from any Permanent marker.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if p.Backoff != nil {
			select {
			case <-time.After(p.Backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
