package hound

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Backoff schedule for transient server failures: 3 tries, doubling from
// half a second and capped at five, each halved-then-jittered so concurrent
// dog syncs do not hammer the server in lockstep.
const (
	defaultMaxAttempts = 3
	baseDelay          = 500 * time.Millisecond
	maxDelay           = 5 * time.Second
)

// Retry calls fn until it succeeds, up to maxAttempts times, backing off
// between failures. A cancelled ctx aborts immediately, including before the
// first call. The returned error wraps the last failure.
func Retry(ctx context.Context, maxAttempts int, fn func() error) error {
	var lastErr error
	for attempt := range maxAttempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		if attempt == maxAttempts-1 {
			break
		}
		if err := sleep(ctx, backoffDelay(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}

// backoffDelay doubles per attempt up to maxDelay, then draws uniformly from
// the upper half of that interval.
func backoffDelay(attempt int) time.Duration {
	delay := baseDelay * (1 << attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 2)) //nolint:gosec // scheduling jitter, not a secret
	return delay/2 + jitter
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry cancelled: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
