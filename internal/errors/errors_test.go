package errors

import (
	"fmt"
	"io"
	"net"
	"os"
	"testing"
)

func TestNetworkError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  NetworkError
		want string
	}{
		{
			name: "retryable",
			err:  NetworkError{Op: "receive", Addr: "127.0.0.1:8888", Err: ErrPeerClosed, Retryable: true},
			want: "receive 127.0.0.1:8888: peer closed the connection (retryable)",
		},
		{
			name: "non-retryable",
			err:  NetworkError{Op: "listen", Addr: ":8080", Err: fmt.Errorf("bind failed")},
			want: "listen :8080: bind failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := &NetworkError{Op: "receive", Addr: "x", Err: io.EOF}
	if !Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "timeout",
				Value:   0,
				Message: "must be a positive number of seconds",
				Hint:    "use -w 5",
			},
			want: "config: --timeout=0: must be a positive number of seconds\n  hint: use -w 5",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "port",
				Message: "required with -l",
			},
			want: "config: --port: required with -l",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := Wrap("dial", "10.0.0.1:8888", inner)

	if err.Op != "dial" || err.Addr != "10.0.0.1:8888" {
		t.Errorf("wrong fields: Op=%q Addr=%q", err.Op, err.Addr)
	}
	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: true}, true},
		{"non-retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: false}, false},
		{"plain error", fmt.Errorf("boom"), false},
		{"deadline", os.ErrDeadlineExceeded, true},
		{"peer closed", ErrPeerClosed, true},
		{"empty message", ErrEmptyMessage, false},
		{"closed endpoint", ErrClosed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWrap_ClassifiesTimeout(t *testing.T) {
	err := Wrap("receive", "x", fmt.Errorf("read: %w", os.ErrDeadlineExceeded))
	if !err.Retryable {
		t.Error("deadline expiry should be retryable")
	}
	if !IsTimeout(err) {
		t.Error("IsTimeout should see through the wrap")
	}
}

func TestIsTimeout(t *testing.T) {
	if IsTimeout(nil) {
		t.Error("nil is not a timeout")
	}
	if !IsTimeout(ErrTimeout) {
		t.Error("ErrTimeout should be a timeout")
	}
	if IsTimeout(io.EOF) {
		t.Error("io.EOF is not a timeout")
	}
}

func TestIsClosed(t *testing.T) {
	if !IsClosed(net.ErrClosed) {
		t.Error("net.ErrClosed should count as closed")
	}
	if !IsClosed(Wrap("send", "x", ErrClosed)) {
		t.Error("wrapped ErrClosed should count as closed")
	}
	if IsClosed(io.EOF) {
		t.Error("io.EOF is not a closed endpoint")
	}
}

func TestClassifyRetryable_NetOpError(t *testing.T) {
	opErr := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: &net.DNSError{IsTemporary: true},
	}
	if !classifyRetryable(opErr) {
		t.Error("temporary OpError should be retryable")
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrEmptyMessage, ErrPeerClosed, ErrClosed, ErrInvalidTimeout,
		ErrShortWrite, ErrPollFailed, ErrNoPeer, ErrTimeout, ErrCircuitOpen,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
