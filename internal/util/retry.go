package util

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Backoff configures Retry. Retries counts attempts after the first one.
type Backoff struct {
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultBackoff is the single retry used around every external call.
var DefaultBackoff = Backoff{Retries: 1, BaseDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}

// Retry runs op until it succeeds, the retries are used up, or ctx is done.
// Delays double per attempt with jitter in [delay/2, delay].
func Retry[T any](ctx context.Context, b Backoff, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if b.Retries < 0 {
		b.Retries = 0
	}
	if b.BaseDelay <= 0 {
		b.BaseDelay = DefaultBackoff.BaseDelay
	}
	if b.MaxDelay < b.BaseDelay {
		b.MaxDelay = b.BaseDelay
	}

	var lastErr error
	for attempt := 0; attempt <= b.Retries; attempt++ {
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if attempt == b.Retries || ctx.Err() != nil {
			break
		}

		delay := b.BaseDelay << attempt
		if delay > b.MaxDelay {
			delay = b.MaxDelay
		}
		half := delay / 2
		wait := half + time.Duration(rand.Int64N(int64(delay-half)+1))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-timer.C:
		}
	}
	if b.Retries == 0 {
		return zero, lastErr
	}
	return zero, fmt.Errorf("after %d retries: %w", b.Retries, lastErr)
}
