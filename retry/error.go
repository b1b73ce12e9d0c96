package retry

import "context"

type permanentError struct {
	error
}

func (e *permanentError) Unwrap() error {
	return e.error
}

// Abort marks err as permanent: the runner stops and returns err itself.
func Abort(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err}
}

type ctxKey string

const attemptKey ctxKey = "attempt"

func withAttempt(ctx context.Context, attempt uint) context.Context {
	return context.WithValue(ctx, attemptKey, attempt)
}

// Attempt returns the zero-based attempt index stored by the runner, or 0 outside a retry loop.
func Attempt(ctx context.Context) uint {
	attempt, _ := ctx.Value(attemptKey).(uint)

	return attempt
}
