// Package throttle serializes remote calls behind an adaptive delay.
//
// Every call sleeps for the current delay first, so even the first call of a
// burst is throttled. A success resets the delay to its default; a failure
// doubles it with no upper bound. The delay is a plain value: Invoke takes it
// and returns the next one, and the caller threads it into the following call
// so failures compound across fetch units for the whole session.
package throttle

import (
	"context"
	"time"

	"github.com/vietddude/harvester/internal/harvest/metrics"
)

// DefaultDelay is the pre-call delay used when none is configured.
const DefaultDelay = 5 * time.Second

// Backoff is the session-scoped inter-call delay.
type Backoff struct {
	Default time.Duration
	Current time.Duration
}

// NewBackoff starts a backoff at its default delay.
func NewBackoff(delay time.Duration) Backoff {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return Backoff{Default: delay, Current: delay}
}

// Reset returns the backoff after a successful call.
func (b Backoff) Reset() Backoff {
	b.Current = b.Default
	return b
}

// Double returns the backoff after a failed call.
func (b Backoff) Double() Backoff {
	b.Current *= 2
	return b
}

// SleepFunc waits for d, returning early with an error if ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Caller carries the sleep implementation; the zero value uses Sleep.
type Caller struct {
	Sleep SleepFunc
}

// Invoke waits b.Current, then runs op. It returns op's result together with
// the backoff to use for the next call. If ctx ends during the wait, op is
// not run and b is returned unchanged.
func Invoke[T any](
	ctx context.Context,
	c Caller,
	b Backoff,
	endpoint string,
	op func(context.Context) (T, error),
) (T, Backoff, error) {
	var zero T

	sleep := c.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	if err := sleep(ctx, b.Current); err != nil {
		return zero, b, err
	}

	start := time.Now()
	result, err := op(ctx)
	metrics.RemoteCalls.WithLabelValues(endpoint).Inc()
	metrics.RemoteLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RemoteErrors.WithLabelValues(endpoint).Inc()
		next := b.Double()
		metrics.BackoffDelay.Set(next.Current.Seconds())
		return zero, next, err
	}

	next := b.Reset()
	metrics.BackoffDelay.Set(next.Current.Seconds())
	return result, next, nil
}
