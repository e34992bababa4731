package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a cache or store lookup with no matching entry.
var ErrNotFound = errors.New("not found")

// ReadError reports that a pool read failed for one exchange after the retry
// budget was exhausted. Simulations involving that exchange are skipped for
// the current pass.
type ReadError struct {
	ExchangeID string
	Err        error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read pool for exchange %s: %v", e.ExchangeID, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// NormalizationError reports that a pool's token composition does not match
// the configured base/quote assets, or that a reserve was non-positive. It is
// a configuration or data-integrity problem and is never retried.
type NormalizationError struct {
	Reason string
}

func (e *NormalizationError) Error() string {
	return "normalize pool: " + e.Reason
}
