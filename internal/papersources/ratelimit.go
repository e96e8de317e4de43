package papersources

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket that paces requests to one upstream.
// It is safe for concurrent use.
//
// Typical settings:
//   - OpenCitations: NewRateLimiter(3, 3), the per-identifier endpoints throttle aggressively
//   - Semantic Scholar without API key: NewRateLimiter(1, 1)
//   - Crossref and OpenAlex polite pool: NewRateLimiter(10, 10)
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter with a sustained rate and burst size.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Wait blocks until a request is allowed or the context is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow reports whether a request may happen now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// SetRate updates the sustained rate, keeping the burst size.
func (r *RateLimiter) SetRate(ratePerSecond float64) {
	r.limiter.SetLimit(rate.Limit(ratePerSecond))
}

// Rate returns the current sustained rate.
func (r *RateLimiter) Rate() float64 {
	return float64(r.limiter.Limit())
}
