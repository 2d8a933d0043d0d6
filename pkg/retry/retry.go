// Package retry runs an operation until it succeeds, is told to stop, or
// runs out of attempts. Hook deliveries use it to survive flaky receivers.
//
//	err := retry.Do(ctx, retry.Delivery(time.Second), func() error {
//	    return post(ctx)
//	})
//
// Return retry.Stop(err) from the operation for errors that will not go
// away on their own, such as a 4xx response.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/auditview/auditview/pkg/defaults"
)

// Strategy is the backoff algorithm.
type Strategy int

const (
	// Exponential waits Base, 2*Base, 4*Base, ...
	Exponential Strategy = iota
	// Constant waits Base between every attempt.
	Constant
)

// maxShift caps the exponent so Base<<shift cannot overflow.
const maxShift = 30

// Config controls Do.
type Config struct {
	Attempts int           // Total attempts including the first. 0 runs nothing.
	Base     time.Duration // Wait before the second attempt.
	Max      time.Duration // Upper bound on one wait. 0 means unbounded.
	Strategy Strategy
	Jitter   bool // Spread each wait by up to ±25%.
}

// Delivery is the policy hooks use: defaults.HookRetries attempts with
// exponential backoff from base, capped at defaults.HookTimeout.
func Delivery(base time.Duration) Config {
	if base <= 0 {
		base = time.Second
	}
	return Config{
		Attempts: defaults.HookRetries,
		Base:     base,
		Max:      defaults.HookTimeout,
		Strategy: Exponential,
	}
}

// StopError marks an error as permanent.
type StopError struct {
	Err error
}

func (e *StopError) Error() string { return e.Err.Error() }
func (e *StopError) Unwrap() error { return e.Err }

// Stop wraps err so that Do returns it without further attempts.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &StopError{Err: err}
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do calls fn until it returns nil, returns a StopError, or cfg.Attempts
// calls have been made. It returns the last error, unwrapped from any
// StopError, or ctx.Err() once the context is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	return do(ctx, cfg, fn, sleep)
}

func do(ctx context.Context, cfg Config, fn func() error, wait sleepFunc) error {
	var last error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, Backoff(cfg, attempt-1)); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		last = fn()
		if last == nil {
			return nil
		}
		var stop *StopError
		if errors.As(last, &stop) {
			return stop.Err
		}
	}
	return last
}

// Backoff returns the wait after the given failed attempt (0-indexed).
func Backoff(cfg Config, attempt int) time.Duration {
	delay := cfg.Base
	if cfg.Strategy == Exponential {
		delay = cfg.Base << min(attempt, maxShift)
		if delay < cfg.Base {
			delay = cfg.Base
		}
	}
	if cfg.Jitter {
		if quarter := int64(delay) / 4; quarter > 0 {
			delay += time.Duration(rand.Int64N(2*quarter+1) - quarter)
		}
	}
	if cfg.Max > 0 && delay > cfg.Max {
		delay = cfg.Max
	}
	return delay
}
