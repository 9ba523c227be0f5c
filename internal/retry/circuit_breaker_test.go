package retry

import (
	"fmt"
	"testing"
	"time"

	ncerr "echonet/internal/errors"
)

// failure is an error the default Counts classifier treats as a failure.
var failure = ncerr.Wrap("receive", "127.0.0.1:8888", ncerr.ErrTimeout)

func fail() error { return failure }
func ok() error   { return nil }

func TestBreaker_NormalOperation(t *testing.T) {
	b := NewBreaker(BreakerConfig{})

	if err := b.Do(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 3, Cooldown: time.Second})

	for i := 0; i < 3; i++ {
		b.Do(fail) //nolint:errcheck
	}

	if b.State() != StateOpen {
		t.Errorf("expected open after 3 failures, got %s", b.State())
	}
	if b.Failures() != 3 {
		t.Errorf("expected 3 failures, got %d", b.Failures())
	}
}

func TestBreaker_RejectsWhenOpen(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: time.Hour})
	b.Do(fail) //nolint:errcheck

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})

	if !ncerr.Is(err, ncerr.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("fn should not run while the circuit is open")
	}
}

func TestBreaker_UncountedErrors(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: time.Hour})

	for i := 0; i < 5; i++ {
		b.Do(func() error { return ncerr.ErrEmptyMessage }) //nolint:errcheck
	}
	if b.State() != StateClosed {
		t.Errorf("empty-message errors should not open the circuit, got %s", b.State())
	}
}

func TestBreaker_CustomCounts(t *testing.T) {
	b := NewBreaker(BreakerConfig{
		MaxFailures: 1,
		Cooldown:    time.Hour,
		Counts:      func(error) bool { return true },
	})
	b.Do(func() error { return fmt.Errorf("anything") }) //nolint:errcheck
	if b.State() != StateOpen {
		t.Errorf("expected open, got %s", b.State())
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: 10 * time.Millisecond, Probes: 2})

	b.Do(fail) //nolint:errcheck
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	time.Sleep(20 * time.Millisecond)

	if err := b.Do(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Errorf("expected half-open after first probe, got %s", b.State())
	}

	if err := b.Do(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed after 2 probes, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailure(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: 10 * time.Millisecond, Probes: 2})

	b.Do(fail) //nolint:errcheck
	time.Sleep(20 * time.Millisecond)

	b.Do(fail) //nolint:errcheck
	if b.State() != StateOpen {
		t.Errorf("expected open after failed probe, got %s", b.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 1, Cooldown: time.Hour})

	b.Do(fail) //nolint:errcheck
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	b.Reset()
	if b.State() != StateClosed {
		t.Errorf("expected closed after reset, got %s", b.State())
	}
	if b.Failures() != 0 {
		t.Errorf("expected 0 failures after reset, got %d", b.Failures())
	}
}

func TestBreaker_StateChange(t *testing.T) {
	var transitions []string
	b := NewBreaker(BreakerConfig{
		MaxFailures: 1,
		Cooldown:    10 * time.Millisecond,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, fmt.Sprintf("%s→%s", from, to))
		},
	})

	b.Do(fail) //nolint:errcheck
	time.Sleep(20 * time.Millisecond)
	b.Do(ok) //nolint:errcheck

	want := []string{"closed→open", "open→half-open", "half-open→closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestBreaker_Defaults(t *testing.T) {
	b := NewBreaker(BreakerConfig{})
	if b.cfg.MaxFailures != 5 || b.cfg.Cooldown != 30*time.Second || b.cfg.Probes != 1 {
		t.Errorf("unexpected defaults: %+v", b.cfg)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{MaxFailures: 3, Cooldown: time.Second})

	b.Do(fail) //nolint:errcheck
	b.Do(fail) //nolint:errcheck
	b.Do(ok)   //nolint:errcheck

	if b.Failures() != 0 {
		t.Errorf("expected 0 failures after success, got %d", b.Failures())
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}
