package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/ptsites/internal/logger"
)

// Default retry policy used for open-registration checks.
const (
	DefaultAttempts      = 2
	DefaultRetryInterval = 5 * time.Second
)

// Retry wraps a Fetcher and repeats failed fetches at a fixed interval.
// A fetch fails when it errors, returns a non-200 status or an empty body.
type Retry struct {
	Next     Fetcher
	Attempts int
	Interval time.Duration

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetry wraps next with the default policy.
func NewRetry(next Fetcher) *Retry {
	return &Retry{
		Next:     next,
		Attempts: DefaultAttempts,
		Interval: DefaultRetryInterval,
	}
}

// Fetch calls the wrapped fetcher until it succeeds or attempts run out.
// The final error wraps ErrRetriesExhausted and the last failure.
func (r *Retry) Fetch(ctx context.Context, targetURL string, opts Options) (Content, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var (
		content Content
		lastErr error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		content, lastErr = r.Next.Fetch(ctx, targetURL, opts)
		if lastErr == nil {
			switch {
			case content.StatusCode != 0 && content.StatusCode != 200:
				lastErr = &StatusError{URL: targetURL, StatusCode: content.StatusCode}
			case len(content.Body) == 0 && content.HTML == "":
				lastErr = ErrEmptyBody
			default:
				return content, nil
			}
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return content, lastErr
		}

		logger.Debug("fetch attempt failed",
			"url", targetURL,
			"attempt", attempt,
			"of", attempts,
			"error", lastErr)

		if attempt < attempts {
			if err := sleep(ctx, r.Interval); err != nil {
				return content, err
			}
		}
	}
	return content, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

// Close closes the wrapped fetcher.
func (r *Retry) Close() error {
	return r.Next.Close()
}

// Type reports the wrapped fetcher type.
func (r *Retry) Type() string {
	return r.Next.Type()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ Fetcher = (*Retry)(nil)
