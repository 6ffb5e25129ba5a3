package solana

import (
	"context"
	"time"
)

// Policy retries an operation with bounded exponential backoff. The delay
// before attempt k (k >= 2) is BaseDelay * 2^(k-2), capped at MaxDelay, so
// attempt 2 waits BaseDelay, attempt 3 waits 2*BaseDelay, and so on. No
// jitter is applied; the schedule is deterministic.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Values below 1 behave as 1.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Zero means uncapped.
	MaxDelay time.Duration

	// Retryable decides whether a failure is worth another attempt.
	// Nil means IsRetryable.
	Retryable func(error) bool

	// OnRetry, if set, is called after a retryable failure and before the
	// backoff wait. attempt is the 1-based attempt that just failed.
	OnRetry func(attempt int, err error)
}

// backoffDelay returns the wait before the given 1-based attempt.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := base
	for i := 2; i < attempt; i++ {
		delay *= 2
		if max > 0 && delay >= max {
			return max
		}
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}

// Execute runs op until it succeeds, fails non-retryably, exhausts
// MaxAttempts, or ctx ends. The last failure is returned on exhaustion;
// ctx.Err() is returned when the context ends during a backoff wait, so an
// expired overall deadline surfaces as context.DeadlineExceeded rather than
// as the failure that preceded it.
func (p Policy) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelay(p.BaseDelay, p.MaxDelay, attempt)):
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
		if attempt < attempts && p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
	}
	return lastErr
}
