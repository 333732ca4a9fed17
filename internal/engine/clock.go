package engine

import (
	"context"
	"time"

	"github.com/smithers-run/smithers/internal/app"
)

// Clock enforces the minimum delay between two consecutive Wait calls,
// which Engine.Run makes once after every tick; the delay is configured
// via app.EffectiveIterationTimeoutMS and zero disables it.
type Clock struct {
	minDelay time.Duration
	last     time.Time
}

// NewClock reads the configured throttle once at construction.
func NewClock() *Clock {
	return &Clock{minDelay: time.Duration(app.EffectiveIterationTimeoutMS()) * time.Millisecond}
}

// Wait blocks until minDelay has elapsed since the previous Wait call, or
// ctx is cancelled, whichever comes first. A zero minDelay returns
// immediately.
func (c *Clock) Wait(ctx context.Context) {
	if c.minDelay <= 0 {
		c.last = time.Now()
		return
	}
	elapsed := time.Since(c.last)
	if elapsed < c.minDelay {
		timer := time.NewTimer(c.minDelay - elapsed)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
	c.last = time.Now()
}
