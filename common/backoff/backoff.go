package backoff

import (
	"context"
	"time"
)

const (
	DefaultInitialInterval = 10 * time.Millisecond
	DefaultMultiplier      = 1.5
)

// Policy describes an exponential backoff bounded by a cumulative budget.
// MaxCumulative is the total amount of time a caller is allowed to spend
// sleeping; once the budget is spent Next reports stop.
type Policy struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxCumulative   time.Duration
}

func (p Policy) New() *Backoff {
	if p.InitialInterval <= 0 {
		p.InitialInterval = DefaultInitialInterval
	}
	if p.Multiplier <= 1 {
		p.Multiplier = DefaultMultiplier
	}
	return &Backoff{policy: p, next: p.InitialInterval}
}

type Backoff struct {
	policy     Policy
	next       time.Duration
	cumulative time.Duration
}

// Next returns the pause before the next attempt, or false when the
// cumulative budget is exhausted and the caller should stop retrying.
func (b *Backoff) Next() (time.Duration, bool) {
	pause := b.next
	if b.policy.MaxInterval > 0 && pause > b.policy.MaxInterval {
		pause = b.policy.MaxInterval
	}
	if b.policy.MaxCumulative > 0 {
		remaining := b.policy.MaxCumulative - b.cumulative
		if remaining <= 0 {
			return 0, false
		}
		if pause > remaining {
			pause = remaining
		}
	}
	b.cumulative += pause
	b.next = time.Duration(float64(b.next) * b.policy.Multiplier)
	return pause, true
}

// Sleep blocks for the given duration or until the context is canceled,
// whichever comes first.
func Sleep(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
