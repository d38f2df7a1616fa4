// Package ratelimit enforces a minimum spacing between successive
// invocations of a wrapped function. It is a sliding cooldown, not a token
// bucket: bursts are serialized, never rejected.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces invocation starts at least Interval apart. The cooldown is
// global to the limiter instance, not per argument.
type Limiter struct {
	lim *rate.Limiter
}

// New returns a limiter with the given minimum spacing.
func New(interval time.Duration) *Limiter {
	return &Limiter{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// Do waits out any remaining cooldown, then invokes fn. The wait is
// cancelable through ctx.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := l.lim.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// Wrap returns fn with the limiter applied to every call.
func (l *Limiter) Wrap(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return l.Do(ctx, fn)
	}
}
