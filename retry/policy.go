package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Attempts is the maximum number of calls, the first one included. Zero means unbounded.
type Attempts uint

// Backoff computes the pause after a failed attempt (0 for the first failure).
type Backoff interface {
	Delay(attempt uint) time.Duration
}

// ExpBackoff grows as Base * Factor^attempt, clamped to [Base, Max].
type ExpBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

func (b ExpBackoff) Delay(attempt uint) time.Duration {
	d := time.Duration(float64(b.Base) * math.Pow(b.Factor, float64(attempt)))

	switch {
	case d < b.Base:
		return b.Base
	case b.Max > 0 && d > b.Max:
		return b.Max
	default:
		return d
	}
}

// ConstantBackoff waits the same duration after every failure.
type ConstantBackoff time.Duration

func (c ConstantBackoff) Delay(uint) time.Duration {
	return time.Duration(c)
}

// Jitter is the randomized share of a delay: 0 keeps it exact, 1 draws it
// uniformly from [0, delay). Negative values disable jitter.
type Jitter float64

const (
	// FullJitter draws uniformly from [0, delay).
	FullJitter Jitter = 1.0
	// EqualJitter keeps half the delay and randomizes the other half.
	EqualJitter Jitter = 0.5
	// WithoutJitter uses the exact delay.
	WithoutJitter Jitter = -1.0
)

func (j Jitter) apply(d time.Duration) time.Duration {
	if j <= 0 || d <= 0 {
		return d
	}

	//nolint:gosec // jitter does not need a cryptographic source
	r := rand.Float64() * float64(d)

	if j < 1 {
		r = float64(j)*r + float64(1-j)*float64(d)
	}

	return time.Duration(r)
}

// Option configures a Runner.
type Option func(*options)

type options struct {
	attempts Attempts
	backoff  Backoff
	jitter   Jitter
	retryIf  func(error) bool
}

// WithAttempts bounds the number of calls.
func WithAttempts(a Attempts) Option {
	return func(o *options) {
		o.attempts = a
	}
}

// WithBackoff sets the delay strategy between attempts.
func WithBackoff(b Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithJitter sets the jitter strategy.
func WithJitter(j Jitter) Option {
	return func(o *options) {
		o.jitter = j
	}
}

// WithRetryIf retries only errors for which pred returns true; any other error is returned at once.
func WithRetryIf(pred func(error) bool) Option {
	return func(o *options) {
		o.retryIf = pred
	}
}
