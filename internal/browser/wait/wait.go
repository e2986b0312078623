// Package wait implements the polling primitive behind every readiness gate:
// evaluate a condition at a fixed interval until it holds or a deadline passes.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/pagegate/internal/browser/driver"
)

// DefaultInterval is used when Options.Interval is not set.
const DefaultInterval = 500 * time.Millisecond

// ErrTimeout matches every *TimeoutError via errors.Is.
var ErrTimeout = errors.New("condition not met before timeout")

// DefaultIgnored are the errors treated as "not yet" while polling.
var DefaultIgnored = []error{driver.ErrNoSuchElement, driver.ErrStaleElement}

// TimeoutError reports a condition that never held within its budget.
type TimeoutError struct {
	Condition string
	Timeout   time.Duration
	Attempts  int
	// Last is the most recent ignored error, if any.
	Last error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %v waiting for %s (%d attempts)", e.Timeout, e.Condition, e.Attempts)
	if e.Last != nil {
		msg += ": last error: " + e.Last.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrTimeout) hold.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Unwrap() error { return e.Last }

// IsTimeout reports whether err is, or wraps, a wait timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// Condition is evaluated on each poll. It returns done=true together with the
// value to hand back to the caller.
type Condition[T any] func(ctx context.Context) (value T, done bool, err error)

// Options configures a single wait.
type Options struct {
	// Condition describes what is awaited; it only feeds error messages.
	Condition string
	Timeout   time.Duration
	Interval  time.Duration
	// Ignore lists errors that count as "not yet". Nil means DefaultIgnored;
	// an empty non-nil slice ignores nothing.
	Ignore []error
}

// Until evaluates cond immediately and then once per interval until it reports
// done, an unignored error occurs, ctx ends, or the timeout elapses. The last
// evaluation happens at or after the deadline, so a timeout is never reported early.
func Until[T any](ctx context.Context, opts Options, cond Condition[T]) (T, error) {
	var zero T

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ignore := opts.Ignore
	if ignore == nil {
		ignore = DefaultIgnored
	}

	deadline := time.Now().Add(opts.Timeout)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	var (
		attempts int
		last     error
	)
	for {
		attempts++
		value, done, err := cond(ctx)
		switch {
		case err == nil && done:
			return value, nil
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			if !isIgnored(err, ignore) {
				return zero, fmt.Errorf("waiting for %s: %w", opts.Condition, err)
			}
			last = err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return zero, &TimeoutError{
				Condition: opts.Condition,
				Timeout:   opts.Timeout,
				Attempts:  attempts,
				Last:      last,
			}
		}

		pause := interval
		if remaining < pause {
			pause = remaining
		}
		timer.Reset(pause)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// For is Until for conditions that carry no value.
func For(ctx context.Context, opts Options, cond func(ctx context.Context) (bool, error)) error {
	_, err := Until(ctx, opts, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := cond(ctx)
		return struct{}{}, ok, err
	})
	return err
}

// Sleep pauses for d or until ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

func isIgnored(err error, ignore []error) bool {
	for _, target := range ignore {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
