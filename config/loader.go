package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the ECHONET_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty,
// well-formed env vars override the existing value.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("ECHONET_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("ECHONET_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := envInt("ECHONET_LOCAL_PORT"); v > 0 {
		cfg.LocalPort = v
	}
	if envBool("ECHONET_LISTEN") {
		cfg.Listen = true
	}
	if envBool("ECHONET_UDP") {
		cfg.UDP = true
	}
	if envBool("ECHONET_NO_DNS") {
		cfg.NoDNS = true
	}
	if v := envInt("ECHONET_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}

	// Server
	if v := envInt("ECHONET_BACKLOG"); v > 0 {
		cfg.Backlog = v
	}
	if v := os.Getenv("ECHONET_DELEGATE"); v != "" {
		cfg.Delegate = v
	}
	if v := os.Getenv("ECHONET_EXEC"); v != "" {
		cfg.Exec = v
	}
	if v := os.Getenv("ECHONET_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	// Datagram client
	if v := envInt("ECHONET_MAX_TRIES"); v > 0 {
		cfg.MaxTries = v
	}
	if v, ok := envDuration("ECHONET_RETRY_DELAY"); ok {
		cfg.RetryDelay = v
	}
	if envBool("ECHONET_RETRY_BACKOFF") {
		cfg.RetryBackoff = true
	}

	// Smoke test
	if envBool("ECHONET_SMOKE") {
		cfg.Smoke = true
	}
	if v := envInt("ECHONET_CONNECTIONS"); v > 0 {
		cfg.Connections = v
	}
	if v := envInt("ECHONET_MESSAGE_SIZE"); v > 0 {
		cfg.MessageSize = v
	}

	// Output
	if v := envInt("ECHONET_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ConfigPathFromEnv returns ECHONET_CONFIG, the config file to load when
// --config is not given.
func ConfigPathFromEnv() string {
	return os.Getenv("ECHONET_CONFIG")
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
