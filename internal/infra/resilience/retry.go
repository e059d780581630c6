package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/matchd-io/matchd/internal/domain"
)

// RetryPolicy shapes the exponential backoff between attempts. An attempt n
// (0-based) that fails transiently waits base×2^n plus uniform ±jitter
// before the next try.
type RetryPolicy struct {
	MaxRetries int           // retries after the first attempt (default 3)
	BaseDelay  time.Duration // backoff unit (default 1s)
	MaxJitter  time.Duration // uniform jitter half-width (default 1s)

	// sleep is injectable for tests; nil means a context-aware timer.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns production defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxJitter:  time.Second,
	}
}

// WithSleep returns a copy of the policy using the given sleeper.
func (p RetryPolicy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) RetryPolicy {
	p.sleep = sleep
	return p
}

// Backoff returns the delay before retrying after the n-th failed attempt.
// The jitter term keeps synchronized callers from stampeding.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	d := base << uint(attempt)
	if p.MaxJitter > 0 {
		d += time.Duration(rand.Int63n(int64(2*p.MaxJitter))) - p.MaxJitter
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Retry runs fn until it succeeds, fails non-transiently, exhausts the
// retry budget, or ctx is done. Only transient failures (timeouts, 5xx,
// network errors) are retried; invalid input never is.
func Retry(ctx context.Context, p RetryPolicy, fn func() error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !domain.IsTransient(err) {
			return err
		}
		if attempt >= p.MaxRetries {
			return err
		}
		if serr := sleep(ctx, p.Backoff(attempt)); serr != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
