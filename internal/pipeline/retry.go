package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/mathreel/internal/render"
)

// ErrRetriesExhausted marks a transient failure that kept failing.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy bounds attempts and spaces them with jittered exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	return render.IsTransient(err)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	base := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && (base > p.MaxDelay || base <= 0) {
		base = p.MaxDelay
	}
	if base/2 <= 0 {
		return base
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do calls fn until it succeeds, fails fatally, or runs out of attempts. onRetry,
// if set, runs before each backoff with the attempt about to start and the error
// that caused it. Exhaustion is reported as a fatal error wrapping
// ErrRetriesExhausted and the last failure.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context, attempt int) error, onRetry func(attempt int, err error)) error {
	var err error
	for attempt := range p.attempts() {
		if attempt > 0 {
			if onRetry != nil {
				onRetry(attempt, err)
			}
			select {
			case <-time.After(p.Backoff(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = fn(ctx, attempt)
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return &render.AdapterError{
		Kind:    render.Fatal,
		Op:      op,
		Message: fmt.Sprintf("retries exhausted after %d attempts: %v", p.attempts(), err),
		Err:     fmt.Errorf("%w: %w", ErrRetriesExhausted, err),
	}
}
