package collector

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// RetryPolicy controls how a failed detection is retried at a single pose.
//
// SettleDelay is the wait before the second attempt. Every later wait is multiplied by Multiplier
// until it reaches MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	SettleDelay time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is three attempts half a second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, SettleDelay: 500 * time.Millisecond, Multiplier: 1, MaxDelay: 2 * time.Second}
}

// Validate ensures all parts of the policy are valid.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.Errorf("retry max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.SettleDelay < 0 || p.MaxDelay < 0 {
		return errors.New("retry delays cannot be negative")
	}
	if p.Multiplier < 1 {
		return errors.Errorf("retry multiplier must be at least 1, got %v", p.Multiplier)
	}
	return nil
}

func (p RetryPolicy) newBackOff(ctx context.Context, clk clock.Clock) backoff.BackOff {
	maxDelay := p.MaxDelay
	if maxDelay < p.SettleDelay {
		maxDelay = p.SettleDelay
	}
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     p.SettleDelay,
		RandomizationFactor: 0,
		Multiplier:          p.Multiplier,
		MaxInterval:         maxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               clk,
	}
	eb.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1)), ctx)
}

// clockTimer drives backoff waits from a clock.Clock so tests can control time. Every wait gets a
// new timer from the clock.
type clockTimer struct {
	clk   clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(duration time.Duration) {
	t.Stop()
	t.timer = t.clk.Timer(duration)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
