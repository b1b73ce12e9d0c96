// Package retry re-runs an operation until it succeeds, fails permanently,
// runs out of attempts, or its context ends.
//
// Operations run synchronously on the caller's goroutine, so once Do returns
// no attempt is still in flight.
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//	    return store.Save(ctx, rec)
//	},
//	    retry.WithAttempts(3),
//	    retry.WithRetryIf(func(err error) bool { return errors.Is(err, ErrConflict) }),
//	)
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	defaultAttempts      = 4
	defaultBaseDelay     = 100 * time.Millisecond
	defaultMaxDelay      = 2 * time.Second
	defaultBackoffFactor = 2.0
)

// Runner executes operations under a fixed retry policy.
type Runner struct {
	opts options
}

// NewRunner creates a Runner. Without options it makes 4 attempts with
// exponential backoff (100ms base, 2s cap, factor 2) and full jitter.
func NewRunner(opts ...Option) *Runner {
	o := options{
		attempts: defaultAttempts,
		backoff: ExpBackoff{
			Base:   defaultBaseDelay,
			Max:    defaultMaxDelay,
			Factor: defaultBackoffFactor,
		},
		jitter: FullJitter,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return &Runner{opts: o}
}

// Do runs f under the runner's policy.
//
// It returns nil on success, ctx.Err() once the context ends, the unwrapped
// error of an Abort, the first error rejected by WithRetryIf, or the last
// error when attempts run out.
func (r *Runner) Do(ctx context.Context, f func(ctx context.Context) error) error {
	var err error

	for attempt := uint(0); r.opts.attempts == 0 || Attempts(attempt) < r.opts.attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = f(withAttempt(ctx, attempt))
		if err == nil {
			return nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return p.error
		}

		if r.opts.retryIf != nil && !r.opts.retryIf(err) {
			return err
		}

		if r.opts.attempts != 0 && Attempts(attempt+1) >= r.opts.attempts {
			break
		}

		if waitErr := sleep(ctx, r.opts.jitter.apply(r.opts.backoff.Delay(attempt))); waitErr != nil {
			return waitErr
		}
	}

	return err
}

func sleep(ctx context.Context, d time.Duration) error {
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

// Do runs f with a one-off Runner built from opts.
func Do(ctx context.Context, f func(ctx context.Context) error, opts ...Option) error {
	return NewRunner(opts...).Do(ctx, f)
}

// DoValue is Do for operations that produce a value.
// On failure it returns the zero value of T.
func DoValue[T any](ctx context.Context, f func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	return Value(ctx, NewRunner(opts...), f)
}

// Value runs f on an existing Runner and returns its result.
func Value[T any](ctx context.Context, r *Runner, f func(ctx context.Context) (T, error)) (T, error) {
	var out T

	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := f(ctx)
		if err != nil {
			return err
		}

		out = v

		return nil
	})
	if err != nil {
		var zero T

		return zero, err
	}

	return out, nil
}
