// Package config defines the runtime configuration for echonet and the
// layers that fill it in: defaults, a YAML file, environment variables
// and (in cmd) command-line flags.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"echonet/internal/delegate"
	"echonet/internal/transport"
	ncerr "echonet/internal/errors"
)

// Config holds every tuneable for one echonet process.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`       // destination port (connect, smoke)
	LocalPort int           `yaml:"local_port"` // -p: listening port
	Listen    bool          `yaml:"listen"`
	UDP       bool          `yaml:"udp"`
	NoDNS     bool          `yaml:"no_dns"`
	Timeout   time.Duration `yaml:"timeout"`

	// ── Server ───────────────────────────────────────────────────────
	Backlog     int    `yaml:"backlog"`
	Delegate    string `yaml:"delegate"`
	Exec        string `yaml:"exec"` // -e: shell command used as the delegate
	MetricsAddr string `yaml:"metrics_addr"`

	// ── Datagram client ──────────────────────────────────────────────
	MaxTries     int           `yaml:"max_tries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	RetryBackoff bool          `yaml:"retry_backoff"` // double the pause after each attempt

	// ── Smoke test ───────────────────────────────────────────────────
	Smoke       bool `yaml:"smoke"`
	Connections int  `yaml:"connections"`
	MessageSize int  `yaml:"message_size"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose int `yaml:"verbose"`

	ConfigFile string `yaml:"-"`
	DryRun     bool   `yaml:"-"`
}

// Network returns "udp" or "tcp".
func (c *Config) Network() string {
	if c.UDP {
		return "udp"
	}
	return "tcp"
}

// ── Port helpers ─────────────────────────────────────────────────────

// ParsePort accepts a decimal port number in 1-65535.
func ParsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", raw)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
// Every failure is a *errors.ConfigError with a hint where one helps.
func (c *Config) Validate() error {
	if c.Exec != "" && !c.Listen && !c.Smoke {
		return &ncerr.ConfigError{
			Field:   "exec",
			Value:   c.Exec,
			Message: "only applies to listen or smoke mode",
		}
	}

	if c.Listen && c.Smoke {
		return &ncerr.ConfigError{
			Field:   "smoke",
			Message: "listen mode and smoke mode are mutually exclusive",
		}
	}

	if c.Listen {
		if c.LocalPort == 0 {
			return &ncerr.ConfigError{
				Field:   "port",
				Message: "listen mode requires a port",
				Hint:    "use -l -p 8888",
			}
		}
		if !validPort(c.LocalPort) {
			return &ncerr.ConfigError{Field: "port", Value: c.LocalPort, Message: "out of range 1-65535"}
		}
		if !c.UDP && c.Backlog <= 0 {
			return &ncerr.ConfigError{
				Field:   "backlog",
				Value:   c.Backlog,
				Message: "must be a positive number",
				Hint:    fmt.Sprintf("the default is %d", DefaultBacklog),
			}
		}
		if _, err := delegate.ByName(c.Delegate); err != nil && c.Exec == "" {
			return &ncerr.ConfigError{
				Field:   "delegate",
				Value:   c.Delegate,
				Message: "unknown delegate",
				Hint:    "choose one of " + strings.Join(delegate.Names(), ", ") + ", or use -e <command>",
			}
		}
		if c.MetricsAddr != "" {
			if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
				return &ncerr.ConfigError{
					Field:   "metrics-addr",
					Value:   c.MetricsAddr,
					Message: "must be host:port",
					Hint:    "use --metrics-addr :9100",
				}
			}
		}
	} else {
		if c.Host == "" {
			return &ncerr.ConfigError{
				Field:   "host",
				Message: "hostname is required",
				Hint:    "usage: echonet [options] <host> <port>",
			}
		}
		if c.NoDNS && net.ParseIP(c.Host) == nil {
			return &ncerr.ConfigError{
				Field:   "host",
				Value:   c.Host,
				Message: "not a numeric IP address and DNS is disabled",
				Hint:    "drop -n or pass an IP address",
			}
		}
		if c.Port == 0 {
			return &ncerr.ConfigError{Field: "port", Message: "destination port is required"}
		}
		if !validPort(c.Port) {
			return &ncerr.ConfigError{Field: "port", Value: c.Port, Message: "out of range 1-65535"}
		}
		if c.UDP && c.MaxTries <= 0 {
			return &ncerr.ConfigError{
				Field:   "max-tries",
				Value:   c.MaxTries,
				Message: "must be a positive number",
				Hint:    fmt.Sprintf("the default is %d", DefaultMaxTries),
			}
		}
		if c.RetryDelay < 0 {
			return &ncerr.ConfigError{Field: "retry-delay", Value: c.RetryDelay, Message: "must not be negative"}
		}
	}

	if c.Timeout <= 0 {
		return &ncerr.ConfigError{
			Field:   "timeout",
			Value:   int(c.Timeout / time.Second),
			Message: "must be a positive number of seconds",
			Hint:    "use -w 5",
		}
	}

	if c.Smoke {
		if c.Connections <= 0 {
			return &ncerr.ConfigError{Field: "connections", Value: c.Connections, Message: "must be a positive number"}
		}
		if c.MessageSize <= 0 {
			return &ncerr.ConfigError{Field: "message-size", Value: c.MessageSize, Message: "must be a positive number"}
		}
		if c.MessageSize > transport.MaxMessageSize {
			return &ncerr.ConfigError{
				Field:   "message-size",
				Value:   c.MessageSize,
				Message: "exceeds the largest message a datagram can carry",
				Hint:    fmt.Sprintf("use at most %d", transport.MaxMessageSize),
			}
		}
		if _, err := delegate.ByName(c.Delegate); err != nil && c.Exec == "" {
			return &ncerr.ConfigError{
				Field:   "delegate",
				Value:   c.Delegate,
				Message: "unknown delegate",
				Hint:    "choose one of " + strings.Join(delegate.Names(), ", "),
			}
		}
	}

	return nil
}
