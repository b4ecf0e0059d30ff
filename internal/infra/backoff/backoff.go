// Package backoff provides retry delay strategies and a context-aware
// retry loop used when a checkpoint write fails transiently.
package backoff

import (
	"context"
	"math"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// Exponential doubles the delay each attempt.
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(attempt-1), capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && (d > e.Max || d < 0) {
		return e.Max
	}
	return d
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn up to attempts times, sleeping s.Delay(n) between calls.
// It returns nil on the first success, otherwise the last error from fn.
// onRetry, if non-nil, is called before each sleep with the attempt that
// just failed. A done ctx stops the loop early and the last fn error is
// returned.
func Retry(ctx context.Context, attempts int, s Strategy, fn func(attempt int) error, onRetry func(attempt int, err error, wait time.Duration)) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		wait := s.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
		if Sleep(ctx, wait) != nil {
			break
		}
	}
	return err
}
