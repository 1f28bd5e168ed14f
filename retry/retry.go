// Package retry wraps a fallible operation with exponential backoff and
// jitter. It does not classify errors: every failure is eligible for
// retry. The only failures that callers in this module keep out of retry
// are ETag conflicts (HTTP 412), which the write paths short-circuit;
// every other failure, including 401/403 authentication failures, is
// retried up to the attempt limit.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Config controls attempt count and delay shape.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultConfig matches the spec's defaults: 3 attempts, 1s base delay
// doubling up to a 10s ceiling, with jitter.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
	}
}

func (c Config) delayAfter(attempt int) time.Duration {
	d := c.BaseDelay << (attempt - 1)
	if d > c.MaxDelay || d <= 0 {
		d = c.MaxDelay
	}
	if c.Jitter {
		factor := 0.5 + rand.Float64()*0.5
		d = time.Duration(float64(d) * factor)
	}
	return d
}

// Do runs fn, retrying on any error up to cfg.MaxAttempts times. The last
// error is returned on exhaustion. Every retry is logged at warn level
// with the attempt number, delay and error.
func Do(ctx context.Context, log zerolog.Logger, cfg Config, op string, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.delayAfter(attempt)
		log.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(lastErr).
			Msg("retrying after failure")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
