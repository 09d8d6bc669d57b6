// Package ratelimiter provides token bucket rate limiting for outbound
// metadata service requests.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter wraps golang.org/x/time/rate with the two entry points the
// metadata client needs: a non-blocking check and a context-aware wait.
//
// Tokens replenish at the sustained rate; burst is the bucket capacity,
// allowing short spikes above the sustained rate. All methods are safe
// for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained with
// the given burst capacity.
//
// requestsPerSecond = 0 means unlimited. A burst below the sustained
// rate would starve the bucket, so it is raised to the rate.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < requestsPerSecond {
		burst = requestsPerSecond
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst))}
}

// Allow reports whether a request may proceed now, consuming a token
// when it may. Use for paths that should reject rather than queue.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the number of tokens currently available. Monitoring
// only; the value is stale as soon as it is read.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
