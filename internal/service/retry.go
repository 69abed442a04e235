package service

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"multimodal-rag/internal/domain"
)

// RetryPolicy controls retries of transient collaborator failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Backoff returns exponential backoff with jitter for the given retry number (1-based).
// The delay doubles each attempt up to MaxDelay, then varies by up to 25% either way.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 0 || p.BaseDelay <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	backoff := p.BaseDelay * time.Duration(1<<uint(attempt-1))
	if p.MaxDelay > 0 && backoff > p.MaxDelay {
		backoff = p.MaxDelay
	}
	if half := int64(backoff) / 2; half > 0 {
		backoff += time.Duration(rand.Int64N(half)) - backoff/4
	}
	return backoff
}

// withRetry calls fn until it succeeds, fails with a non-retryable error, runs out of
// attempts, or ctx is done. The last error is returned unchanged.
func withRetry[T any](ctx context.Context, p RetryPolicy, logger *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil || !domain.IsRetryable(err) || attempt >= attempts {
			return v, err
		}
		delay := p.Backoff(attempt)
		logger.Warn("Retrying collaborator call",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return v, err
		case <-timer.C:
		}
	}
}
