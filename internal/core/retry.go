package core

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// withRetry calls fn up to attempts times, doubling backoff between failures.
func withRetry(ctx context.Context, logger *slog.Logger, op string, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 0 {
				logger.Info("Operation succeeded after retry", "op", op, "attempt", attempt+1)
			}
			return nil
		}

		if attempt < attempts-1 {
			wait := time.Duration(math.Pow(2, float64(attempt))) * backoff
			logger.Warn("Operation failed, retrying", "op", op, "attempt", attempt+1, "of", attempts, "wait", wait, "error", lastErr)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	return fmt.Errorf("%s: max retries (%d) exceeded: %w", op, attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
