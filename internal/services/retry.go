package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/desertthunder/melodyfetch/internal/shared"
)

// RetryPolicy bounds the attempts of one fetch operation and the delay between them.
//
// Delays are drawn in whole seconds, uniformly from [MinBackoff, MaxBackoff]. Equal bounds give a fixed delay.
type RetryPolicy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

var (
	// DefaultSearchPolicy allows three attempts with a random 1-5s pause.
	DefaultSearchPolicy = RetryPolicy{MaxAttempts: 3, MinBackoff: time.Second, MaxBackoff: 5 * time.Second}
	// DefaultDetailPolicy allows four attempts with a fixed 1s pause.
	DefaultDetailPolicy = RetryPolicy{MaxAttempts: 4, MinBackoff: time.Second, MaxBackoff: time.Second}
)

// PolicyFromConfig converts a [shared.BackoffConfig] into a RetryPolicy.
func PolicyFromConfig(c shared.BackoffConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: c.Attempts,
		MinBackoff:  time.Duration(c.MinBackoffSeconds) * time.Second,
		MaxBackoff:  time.Duration(c.MaxBackoffSeconds) * time.Second,
	}
}

// Validate checks the policy bounds.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return errors.New("max attempts must be at least 1")
	}
	if p.MinBackoff < 0 || p.MaxBackoff < p.MinBackoff {
		return errors.New("backoff window is invalid")
	}
	return nil
}

// Fixed reports whether every delay is the same.
func (p RetryPolicy) Fixed() bool {
	return p.wholeSeconds(p.MaxBackoff) <= p.wholeSeconds(p.MinBackoff)
}

// Backoff draws the delay before the next attempt.
func (p RetryPolicy) Backoff(r *rand.Rand) time.Duration {
	if p.Fixed() {
		return p.MinBackoff
	}
	lo, hi := p.wholeSeconds(p.MinBackoff), p.wholeSeconds(p.MaxBackoff)
	return time.Duration(lo+r.Int64N(hi-lo+1)) * time.Second
}

func (p RetryPolicy) wholeSeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

// Sleeper pauses for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production [Sleeper].
func SleepContext(ctx context.Context, d time.Duration) error {
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
