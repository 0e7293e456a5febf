// Package retry runs gateway calls under an explicit, injectable policy.
package retry

import (
	"context"
	"fmt"
	"time"

	"okx-trader/pkg/exchanges/common"
)

const (
	DefaultMaxAttempts = 5
	DefaultDelay       = 10 * time.Second
)

// Policy describes how many times and how often a failing call is retried.
type Policy struct {
	MaxAttempts int           // total attempts including the first
	Delay       time.Duration // wait before the second attempt
	Multiplier  float64       // delay growth per attempt; <= 1 means fixed
	MaxDelay    time.Duration // cap for grown delays; 0 means uncapped

	// Retryable decides whether err is worth another attempt.
	// Defaults to common.IsTransient.
	Retryable func(error) bool
	// Sleep waits for d or until ctx is done. Tests replace it with a fake clock.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(op string, attempt int, err error, wait time.Duration)
}

// DefaultPolicy returns five fixed-delay attempts ten seconds apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay, Multiplier: 1}
}

// Error is returned once the policy gives up.
type Error struct {
	Op       string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Do runs fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is done.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call is Do for functions that return a value.
func Call[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = common.IsTransient
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	delay := p.Delay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return zero, &Error{Op: op, Attempts: attempt - 1, Err: lastErr}
		}
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !retryable(err) || attempt == attempts {
			return zero, &Error{Op: op, Attempts: attempt, Err: err}
		}
		if p.OnRetry != nil {
			p.OnRetry(op, attempt, err, delay)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return zero, &Error{Op: op, Attempts: attempt, Err: err}
		}
		delay = p.next(delay)
	}
	return zero, &Error{Op: op, Attempts: attempts, Err: lastErr}
}

func (p Policy) next(d time.Duration) time.Duration {
	if p.Multiplier <= 1 {
		return d
	}
	n := time.Duration(float64(d) * p.Multiplier)
	if p.MaxDelay > 0 && n > p.MaxDelay {
		return p.MaxDelay
	}
	return n
}

// Sleep waits for d unless ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
