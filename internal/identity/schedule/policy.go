// Package schedule holds the timer and backoff policy shared by the sync
// orchestrator, the connectivity monitor and conflict commits.
package schedule

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a capped exponential backoff without jitter.
type Policy struct {
	Base       time.Duration
	Multiplier float64
	MaxDelay   time.Duration
}

var DefaultPolicy = Policy{
	Base:       time.Second,
	Multiplier: 2,
	MaxDelay:   5 * time.Minute,
}

func (p Policy) withDefaults() Policy {
	if p.Base <= 0 {
		p.Base = DefaultPolicy.Base
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultPolicy.Multiplier
	}
	if p.MaxDelay < p.Base {
		p.MaxDelay = max(DefaultPolicy.MaxDelay, p.Base)
	}
	return p
}

// NewBackOff returns a fresh backoff.BackOff following p. It never gives up
// on its own; bound it with backoff.WithMaxRetries or a context.
func (p Policy) NewBackOff() backoff.BackOff {
	p = p.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Delay is the wait after a failure given the number of earlier failures:
// min(Base * Multiplier^retryCount, MaxDelay).
func (p Policy) Delay(retryCount int) time.Duration {
	b := p.NewBackOff()
	d := b.NextBackOff()
	for range max(retryCount, 0) {
		d = b.NextBackOff()
	}
	return d
}

// Retry calls fn up to attempts times, sleeping per the policy between
// failures. Errors wrapped with backoff.Permanent stop at once.
func (p Policy) Retry(ctx context.Context, attempts int, fn func() error) error {
	attempts = max(attempts, 1)
	b := backoff.WithContext(backoff.WithMaxRetries(p.NewBackOff(), uint64(attempts-1)), ctx)
	return backoff.Retry(fn, b)
}
