// Package retry runs operations against flaky backends with bounded,
// configurable backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff patterns.
const (
	PatternLinear      = "linear"
	PatternExponential = "exponential"
)

// Default policy values.
const (
	DefaultMaxRetries   = 3
	DefaultBaseInterval = 60 * time.Second
)

// Policy describes how an operation is retried. The zero value retries
// nothing; use Default for the stock policy.
type Policy struct {
	// MaxRetries is the number of attempts after the first failure.
	MaxRetries int

	// BaseInterval is the wait before the first retry. Linear backoff
	// waits BaseInterval*n before retry n, exponential doubles it each
	// time.
	BaseInterval time.Duration

	// Pattern selects the backoff curve, PatternLinear or
	// PatternExponential. Unknown values fall back to linear.
	Pattern string

	// Retryable classifies errors. A nil Retryable retries everything.
	Retryable func(error) bool
}

// Default returns the stock policy: 3 linear retries starting at one
// minute.
func Default() Policy {
	return Policy{
		MaxRetries:   DefaultMaxRetries,
		BaseInterval: DefaultBaseInterval,
		Pattern:      PatternLinear,
	}
}

// Do runs op, retrying per the policy when it fails with a retryable
// error. The last error is returned once retries are exhausted. Waits are
// interrupted when ctx is done.
func Do(ctx context.Context, p Policy, op func() error) error {
	if p.BaseInterval <= 0 {
		p.BaseInterval = DefaultBaseInterval
	}

	var b backoff.BackOff
	if p.Pattern == PatternExponential {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.BaseInterval
		eb.Multiplier = 2
		eb.RandomizationFactor = 0
		eb.MaxInterval = p.BaseInterval << 16
		eb.MaxElapsedTime = 0
		b = eb
	} else {
		b = &linearBackOff{interval: p.BaseInterval}
	}
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxRetries)), ctx)

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(wrapped, b)
}

// linearBackOff waits interval, 2*interval, 3*interval, ...
type linearBackOff struct {
	interval time.Duration
	attempt  int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.interval
}

func (l *linearBackOff) Reset() { l.attempt = 0 }
