// Package ratelimiter paces synthetic buffer traffic using a token bucket.
//
// The demo driver and load tests push buffers through a pipeline at a target
// rate; this wraps golang.org/x/time/rate so the driver can either wait for
// its next push slot or drop a push when it falls behind, the same choice a
// live source makes.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token-bucket pacer. Safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a pacer allowing pushesPerSecond sustained with the given
// burst. A zero rate means unpaced: pushes are never delayed or dropped.
func New(pushesPerSecond, burst uint) *RateLimiter {
	if pushesPerSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(pushesPerSecond), int(burst)),
	}
}

// Allow reports whether a push may proceed now, consuming a token if so.
// Use it when falling behind should drop buffers rather than queue them.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until the next push slot or until ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the currently available push slots, for monitoring.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
