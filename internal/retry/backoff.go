// Package retry provides exponential backoff for re-dialing a target
// that is not accepting connections yet (a challenge container still
// booting, a service being restarted between attempts).
//
// Nothing in the session core retries on its own; callers opt in by
// wrapping their dialer.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	defaultInitialDelay = 250 * time.Millisecond
	defaultMaxDelay     = 5 * time.Second
	defaultMultiplier   = 2.0
)

// permanent marks an error that retrying cannot fix.
type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent wraps err so that [Backoff.Do] returns it at once instead of
// trying again.  Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// IsPermanent reports whether err, or anything it wraps, came from
// [Permanent].
func IsPermanent(err error) bool {
	var p *permanent
	return errors.As(err, &p)
}

// Backoff describes how long to wait between attempts.  Zero fields fall
// back to 250ms initial delay, 5s cap and a factor of 2.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// MaxAttempts is the total number of tries including the first;
	// 0 means keep going until the context ends.
	MaxAttempts int

	// Jitter spreads each wait by ±25%.
	Jitter bool

	// OnRetry, when set, runs after a failed attempt that will be
	// retried, just before the wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultBackoff returns a configuration tuned for re-dialing a single
// target: short first delay, a few seconds at most between tries.
func DefaultBackoff(attempts int) *Backoff {
	return &Backoff{
		InitialDelay: defaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
		Multiplier:   defaultMultiplier,
		MaxAttempts:  attempts,
		Jitter:       true,
	}
}

// Delay returns the un-jittered wait after the given failed attempt
// (1-based).
func (b *Backoff) Delay(attempt int) time.Duration {
	d, limit, factor := b.InitialDelay, b.MaxDelay, b.Multiplier
	if d <= 0 {
		d = defaultInitialDelay
	}
	if limit <= 0 {
		limit = defaultMaxDelay
	}
	if factor <= 0 {
		factor = defaultMultiplier
	}

	for i := 1; i < attempt && d < limit; i++ {
		d = time.Duration(float64(d) * factor)
	}
	return min(d, limit)
}

// Do calls fn until it returns nil, returns a [Permanent] error, the
// attempt budget runs out, or ctx ends.  fn receives the 1-based attempt
// number.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		switch {
		case err == nil:
			return nil
		case IsPermanent(err):
			return errors.Unwrap(err)
		case b.MaxAttempts > 0 && attempt >= b.MaxAttempts:
			return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
		}

		wait := b.Delay(attempt)
		if b.Jitter {
			wait = addJitter(wait)
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
	}
}

// addJitter moves d by a random amount within ±25%, never below 1ms.
func addJitter(d time.Duration) time.Duration {
	spread := int64(d) / 2 // full width of the ±25% window
	if spread <= 0 {
		return max(d, time.Millisecond)
	}
	shifted := d - time.Duration(spread/2) + time.Duration(rand.Int64N(spread+1))
	return max(shifted, time.Millisecond)
}
