package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultTimeout bounds each send and receive.
	DefaultTimeout = 5 * time.Second

	// DefaultBacklog is the listen(2) backlog of the stream server.
	DefaultBacklog = 1024

	// DefaultMaxTries is how many send/receive attempts a datagram
	// request makes before giving up.
	DefaultMaxTries = 10

	// DefaultRetryDelay is the pause between datagram attempts.
	DefaultRetryDelay = 50 * time.Millisecond

	// DefaultDelegate names the server's message processor.
	DefaultDelegate = "sum"

	// DefaultConnections is the number of concurrent smoke-test clients.
	DefaultConnections = 512

	// DefaultMessageSize caps the length of a random smoke-test message.
	DefaultMessageSize = 1024
)

// Defaults returns a Config with every default applied.
func Defaults() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		Backlog:     DefaultBacklog,
		MaxTries:    DefaultMaxTries,
		RetryDelay:  DefaultRetryDelay,
		Delegate:    DefaultDelegate,
		Connections: DefaultConnections,
		MessageSize: DefaultMessageSize,
	}
}
