// Package retry provides a small attempt loop with a doubling delay.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Options controls a retry loop. RetryOnZero additionally treats a zero
// result value with a nil error as retryable; most operations should only
// retry on errors, so it defaults to off.
type Options struct {
	Attempts    int
	Delay       time.Duration
	RetryOnZero bool
}

// Do runs fn until it succeeds, the attempts are exhausted, or the context
// is canceled. The delay between attempts doubles each time.
func Do[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	delay := opts.Delay
	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		result, err := fn(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if opts.RetryOnZero && any(result) == any(zero) {
			lastErr = fmt.Errorf("attempt %d returned empty result", attempt)
			continue
		}
		return result, nil
	}
	return zero, fmt.Errorf("all %d attempts failed: %w", opts.Attempts, lastErr)
}
