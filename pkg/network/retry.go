// Package network has the shared networking helpers.
package network

import (
	"context"
	"time"
)

const (
	retryMin = time.Second
	retryMax = 30 * time.Second
)

// Retry is an exponential backoff for reconnects.
type Retry struct {
	t, min, max time.Duration
}

func NewRetry() Retry { return NewRetryWith(retryMin, retryMax) }

func NewRetryWith(min, max time.Duration) Retry { return Retry{t: min, min: min, max: max} }

// Fail waits the current period and doubles it up to the max.
// Returns the context error if it is done first.
func (r *Retry) Fail(ctx context.Context) error {
	timer := time.NewTimer(r.t)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	r.t = min(r.t*2, r.max)
	return nil
}

func (r *Retry) Success()            { r.t = r.min }
func (r *Retry) Time() time.Duration { return r.t }
