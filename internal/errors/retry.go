package errors

import (
	"context"
	"errors"
	"time"
)

const (
	maxRetryAttempts = 4
	initialBackoff   = 100 * time.Millisecond
	maxBackoff       = 5 * time.Second
)

// WithRetry runs fn until it succeeds, fails with a non-retryable error, or
// exhausts maxRetryAttempts. The wait doubles between attempts, capped at
// maxBackoff, and the context cancels both the wait and further attempts.
func WithRetry(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	wait := initialBackoff

	var err error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = fn(); err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == maxRetryAttempts {
			return err
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if wait *= 2; wait > maxBackoff {
			wait = maxBackoff
		}
	}

	return err
}

// IsRetryable reports whether err is an AppError flagged safe to repeat.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Retryable
	}

	return false
}
