// Package ratelimit enforces a minimum spacing between outbound API calls.
//
// The exchange throttles clients that issue requests closer together than
// 100 ms, so every transport call must pass through one shared limiter.
// The implementation wraps Uber's rate limiter configured for strict
// spacing: one call per interval, no slack, so bursts are never allowed.
package ratelimit

import (
	"time"

	"go.uber.org/ratelimit"
)

// DefaultInterval is the minimum spacing between calls required by the
// exchange.
const DefaultInterval = 100 * time.Millisecond

// Limiter paces calls to a shared resource. Implementations must be safe
// for concurrent use: when multiple callers Acquire against one limiter,
// the effective inter-call spacing still holds.
type Limiter interface {
	// Acquire blocks until at least the configured interval has elapsed
	// since the previous call was admitted, then records the new call time.
	Acquire()
}

// Option configures a Limiter.
type Option func(*options)

type options struct {
	clock ratelimit.Clock
}

// WithClock substitutes the time source, for tests.
func WithClock(c ratelimit.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

type spacingLimiter struct {
	limiter ratelimit.Limiter
}

// New creates a Limiter admitting one call per interval. A non-positive
// interval falls back to DefaultInterval.
func New(interval time.Duration, opts ...Option) Limiter {
	if interval <= 0 {
		interval = DefaultInterval
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	uberOpts := []ratelimit.Option{
		ratelimit.Per(interval),
		ratelimit.WithoutSlack,
	}
	if o.clock != nil {
		uberOpts = append(uberOpts, ratelimit.WithClock(o.clock))
	}

	return &spacingLimiter{
		limiter: ratelimit.New(1, uberOpts...),
	}
}

func (l *spacingLimiter) Acquire() {
	l.limiter.Take()
}
