package export

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds how often a transient step failure is retried and how
// long to wait between attempts. Backoff grows exponentially with jitter and
// is capped at MaxDelay.
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
}

func NewRetryPolicy(maxAttempts int, initialDelay, maxDelay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     maxAttempts,
		InitialDelay:    initialDelay,
		MaxDelay:        maxDelay,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}
}

// Do runs fn up to MaxAttempts times, retrying only errors classified as
// transient. onRetry is invoked before each re-attempt with the 1-based
// number of the attempt that just failed; the orchestrator uses it to bump
// the persisted attempt count. The last error is returned on exhaustion.
func (rp RetryPolicy) Do(ctx context.Context, fn func() error, onRetry func(attempt int, err error)) error {
	var lastErr error

	for attempt := 1; attempt <= rp.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			return err
		}
		if attempt == rp.MaxAttempts {
			break
		}

		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(rp.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return classify(KindTimeout, ctx.Err())
		case <-timer.C:
		}
	}

	return lastErr
}

func (rp RetryPolicy) delay(attempt int) time.Duration {
	backoff := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt-1))
	if backoff > float64(rp.MaxDelay) {
		backoff = float64(rp.MaxDelay)
	}
	if rp.RandomizeFactor > 0 {
		delta := backoff * rp.RandomizeFactor
		backoff = backoff - delta + rand.Float64()*2*delta
	}
	return time.Duration(backoff)
}
