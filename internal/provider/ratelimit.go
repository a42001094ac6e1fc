package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/hyperjump/shiraberu/internal/models"
)

// maxRateWait bounds how long one call may block on the limiter before the
// caller is told to back off instead.
const maxRateWait = 30 * time.Second

// RateLimiter is a token-bucket limiter shared by all concurrent callers of
// one provider, so bursts across queries do not exceed the provider's quota.
type RateLimiter struct {
	bucket *rate.Limiter
}

// NewRateLimiter creates a limiter allowing perSecond requests with the given burst.
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{bucket: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Wait blocks until a token is available or the context is done. If the
// required wait exceeds maxRateWait the limiter is considered saturated and
// ErrCapacityExceeded is returned without consuming a token.
func (r *RateLimiter) Wait(ctx context.Context) error {
	res := r.bucket.Reserve()
	if !res.OK() {
		return ErrCapacityExceeded
	}
	delay := res.Delay()
	if delay > maxRateWait {
		res.Cancel()
		return ErrCapacityExceeded
	}
	if delay == 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		res.Cancel()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// limited wraps a provider so every Search call first takes a token from the
// shared limiter.
type limited struct {
	inner   SearchProvider
	limiter *RateLimiter
}

// WithRateLimit wraps p with a shared token-bucket rate limiter.
func WithRateLimit(p SearchProvider, limiter *RateLimiter) SearchProvider {
	return &limited{inner: p, limiter: limiter}
}

func (l *limited) ID() string { return l.inner.ID() }

func (l *limited) Search(ctx context.Context, query string, searchType models.SearchType, count int) ([]models.SearchResult, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.Search(ctx, query, searchType, count)
}
