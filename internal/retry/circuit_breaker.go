package retry

import (
	"fmt"
	"sync"
	"time"

	ncerr "echonet/internal/errors"
)

// State is the breaker's position.
type State int

const (
	// StateClosed lets every request through.
	StateClosed State = iota
	// StateOpen rejects requests without running them.
	StateOpen
	// StateHalfOpen lets probe requests through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a [Breaker].  Zero fields take defaults.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive counted failures that
	// opens the circuit (default 5).
	MaxFailures int
	// Cooldown is how long the circuit stays open before a probe is let
	// through (default 30s).
	Cooldown time.Duration
	// Probes is the number of consecutive successful probes that closes
	// the circuit again (default 1).
	Probes int
	// Counts decides which errors count as failures.  The default
	// counts only retryable network errors, so a rejected empty message
	// never opens the circuit.
	Counts func(error) bool
	// OnStateChange runs under the breaker's lock on every transition.
	OnStateChange func(from, to State)
}

// Breaker stops an interactive client from hammering a server that
// keeps failing.  After MaxFailures consecutive failures it rejects new
// requests with ErrCircuitOpen until Cooldown has passed.
type Breaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// NewBreaker returns a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	if cfg.Counts == nil {
		cfg.Counts = ncerr.IsRetryable
	}
	return &Breaker{cfg: cfg}
}

// Do runs fn unless the circuit is open.  A rejected call returns an
// error wrapping ErrCircuitOpen without running fn.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the circuit and clears all counts.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.successes = 0
	b.moveTo(StateClosed)
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	since := time.Since(b.openedAt)
	if since >= b.cfg.Cooldown {
		b.successes = 0
		b.moveTo(StateHalfOpen)
		return nil
	}
	return fmt.Errorf("%w: %d consecutive failures, retry in %v",
		ncerr.ErrCircuitOpen, b.failures, (b.cfg.Cooldown - since).Round(100*time.Millisecond))
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil && b.cfg.Counts(err) {
		b.failures++
		b.successes = 0
		if b.state == StateHalfOpen || b.failures >= b.cfg.MaxFailures {
			b.openedAt = time.Now()
			b.moveTo(StateOpen)
		}
		return
	}
	if err != nil {
		return
	}

	b.successes++
	if b.state == StateHalfOpen && b.successes < b.cfg.Probes {
		return
	}
	b.failures = 0
	b.moveTo(StateClosed)
}

func (b *Breaker) moveTo(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}
