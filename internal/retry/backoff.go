// Package retry provides the attempt loop behind the datagram client's
// resend policy and a circuit breaker for the interactive client.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError wraps an error to signal that another attempt cannot
// help.  Return [Permanent](err) from the attempt function to stop.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as final.  Do returns the inner error at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ExhaustedError is returned by Do when every attempt failed.  Err is
// the error of the last attempt.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff runs an operation up to MaxAttempts times, sleeping between
// attempts.  A Multiplier of 1 gives a constant delay.
type Backoff struct {
	// InitialDelay is the pause before the second attempt (default 1s).
	InitialDelay time.Duration
	// MaxDelay caps the pause (default 60s).
	MaxDelay time.Duration
	// Multiplier grows the pause after each attempt (default 2.0).
	Multiplier float64
	// MaxAttempts is the total number of tries including the first.
	// Zero means unlimited, until the context is cancelled.
	MaxAttempts int
	// Jitter adds ±25% randomisation to each pause.
	Jitter bool
	// OnRetry, if set, runs after a failed attempt that will be
	// followed by another one.
	OnRetry func(attempt int, err error)
}

// DefaultBackoff returns an exponential policy with jitter.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
		Jitter:       true,
	}
}

// Constant returns a policy making exactly attempts tries with a fixed
// pause between them.
func Constant(delay time.Duration, attempts int) *Backoff {
	return &Backoff{
		InitialDelay: delay,
		MaxDelay:     delay,
		Multiplier:   1,
		MaxAttempts:  attempts,
	}
}

// Do calls fn until it succeeds, returns a permanent error, or the
// attempt budget or context runs out.  The attempt number passed to fn
// is 1-based.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	delay := b.InitialDelay
	if delay < 0 {
		delay = 0
	} else if delay == 0 && b.Multiplier != 1 {
		delay = time.Second
	}
	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	maxDelay := b.MaxDelay
	if maxDelay == 0 {
		maxDelay = 60 * time.Second
	}

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if b.MaxAttempts > 0 && attempt >= b.MaxAttempts {
			return &ExhaustedError{Attempts: attempt, Err: err}
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, err)
		}

		wait := delay
		if b.Jitter {
			wait = addJitter(delay)
		}
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, err)
		}

		delay = time.Duration(float64(delay) * multiplier)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
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

// addJitter adds ±25% randomisation to a duration.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	result := float64(d) + delta
	return time.Duration(math.Max(result, float64(time.Millisecond)))
}
