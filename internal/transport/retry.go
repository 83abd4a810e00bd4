package transport

import (
	"context"
	"net"
	"time"

	ncerr "ctfnc/internal/errors"
	"ctfnc/internal/metrics"
	"ctfnc/internal/retry"
	"ctfnc/util"
)

// RetryDialer re-dials through Next with exponential backoff until a
// connection is accepted or the attempt budget runs out.  It only
// affects establishment; an open connection is never re-dialed.  A nil
// Backoff means a single attempt.
type RetryDialer struct {
	Next    Dialer
	Backoff *retry.Backoff
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// NewRetryDialer wraps next with attempts total tries.
func NewRetryDialer(next Dialer, attempts int, logger *util.Logger, m *metrics.Collector) *RetryDialer {
	return &RetryDialer{
		Next:    next,
		Backoff: retry.DefaultBackoff(attempts),
		Logger:  logger,
		Metrics: m,
	}
}

// Dial tries Next.Dial until it succeeds.  A cancelled context or a
// failure that another attempt cannot fix stops the loop immediately.
func (d *RetryDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	bo := retry.Backoff{MaxAttempts: 1}
	if d.Backoff != nil {
		bo = *d.Backoff
	}
	bo.OnRetry = func(attempt int, err error, wait time.Duration) {
		d.Metrics.DialRetry()
		if d.Logger != nil {
			d.Logger.Verbose("dial %s attempt %d failed: %v (retrying in %v)",
				address, attempt, err, wait.Truncate(time.Millisecond))
		}
	}

	var conn net.Conn
	err := bo.Do(ctx, func(_ int) error {
		c, err := d.Next.Dial(ctx, network, address)
		if err != nil {
			if !ncerr.Redialable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Close closes the wrapped dialer.
func (d *RetryDialer) Close() error { return d.Next.Close() }
