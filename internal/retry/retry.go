// Package retry runs an operation again after transient failures.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy decides whether failed attempt n (1-based) is retried and after
// how long.
type Policy interface {
	Next(n int, err error) (time.Duration, bool)
}

// Fixed retries up to MaxRetries times with a constant delay. Errors for
// which Retryable returns false are not retried; a nil Retryable retries all.
type Fixed struct {
	Delay      time.Duration
	MaxRetries int
	Retryable  func(error) bool
}

func (f Fixed) Next(n int, err error) (time.Duration, bool) {
	if n > f.MaxRetries {
		return 0, false
	}
	if f.Retryable != nil && !f.Retryable(err) {
		return 0, false
	}
	return f.Delay, true
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

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

// Do calls fn until it succeeds or p gives up. The last error is returned
// wrapped, so errors.Is still sees the cause.
func Do(ctx context.Context, p Policy, sleep Sleeper, fn func(ctx context.Context) error) error {
	if sleep == nil {
		sleep = Sleep
	}
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		d, ok := p.Next(n, err)
		if !ok {
			if n == 1 {
				return err
			}
			return fmt.Errorf("after %d attempts: %w", n, err)
		}
		if serr := sleep(ctx, d); serr != nil {
			return fmt.Errorf("retry wait: %w", serr)
		}
	}
}
