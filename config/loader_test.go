package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnv_Connection(t *testing.T) {
	t.Setenv("ECHONET_HOST", "10.0.0.5")
	t.Setenv("ECHONET_PORT", "8888")
	t.Setenv("ECHONET_LOCAL_PORT", "9999")
	t.Setenv("ECHONET_TIMEOUT", "7")

	cfg := Defaults()
	LoadFromEnv(cfg)

	if cfg.Host != "10.0.0.5" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.Port != 8888 || cfg.LocalPort != 9999 {
		t.Errorf("Port/LocalPort = %d/%d", cfg.Port, cfg.LocalPort)
	}
	if cfg.Timeout != 7*time.Second {
		t.Errorf("Timeout = %v, want 7s", cfg.Timeout)
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	tests := []struct {
		env   string
		check func(*Config) bool
	}{
		{"ECHONET_LISTEN", func(c *Config) bool { return c.Listen }},
		{"ECHONET_UDP", func(c *Config) bool { return c.UDP }},
		{"ECHONET_NO_DNS", func(c *Config) bool { return c.NoDNS }},
		{"ECHONET_SMOKE", func(c *Config) bool { return c.Smoke }},
		{"ECHONET_RETRY_BACKOFF", func(c *Config) bool { return c.RetryBackoff }},
	}
	for _, tt := range tests {
		for _, val := range []string{"1", "true", "YES"} {
			t.Run(tt.env+"="+val, func(t *testing.T) {
				t.Setenv(tt.env, val)
				cfg := Defaults()
				LoadFromEnv(cfg)
				if !tt.check(cfg) {
					t.Errorf("%s=%s should enable the option", tt.env, val)
				}
			})
		}
	}
}

func TestLoadFromEnv_ServerAndClient(t *testing.T) {
	t.Setenv("ECHONET_BACKLOG", "16")
	t.Setenv("ECHONET_DELEGATE", "echo")
	t.Setenv("ECHONET_METRICS_ADDR", ":9100")
	t.Setenv("ECHONET_MAX_TRIES", "3")
	t.Setenv("ECHONET_RETRY_DELAY", "250ms")
	t.Setenv("ECHONET_CONNECTIONS", "8")
	t.Setenv("ECHONET_MESSAGE_SIZE", "512")
	t.Setenv("ECHONET_VERBOSE", "2")

	cfg := Defaults()
	LoadFromEnv(cfg)

	if cfg.Backlog != 16 || cfg.Delegate != "echo" || cfg.MetricsAddr != ":9100" {
		t.Errorf("server fields not loaded: %+v", cfg)
	}
	if cfg.MaxTries != 3 || cfg.RetryDelay != 250*time.Millisecond {
		t.Errorf("client fields not loaded: %+v", cfg)
	}
	if cfg.Connections != 8 || cfg.MessageSize != 512 || cfg.Verbose != 2 {
		t.Errorf("other fields not loaded: %+v", cfg)
	}
}

func TestLoadFromEnv_NoOverrideWhenEmpty(t *testing.T) {
	cfg := Defaults()
	cfg.Host = "keep"
	LoadFromEnv(cfg)
	if cfg.Host != "keep" || cfg.Backlog != DefaultBacklog {
		t.Errorf("empty env should not override: %+v", cfg)
	}
}

func TestLoadFromEnv_InvalidIgnored(t *testing.T) {
	t.Setenv("ECHONET_TIMEOUT", "soon")
	t.Setenv("ECHONET_RETRY_DELAY", "-5ms")
	cfg := Defaults()
	LoadFromEnv(cfg)
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("invalid timeout should be ignored, got %v", cfg.Timeout)
	}
	if cfg.RetryDelay != DefaultRetryDelay {
		t.Errorf("negative retry delay should be ignored, got %v", cfg.RetryDelay)
	}
}

// ── YAML file ────────────────────────────────────────────────────────

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "echonet.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
listen: true
local_port: 8888
backlog: 64
timeout: 2s
retry_delay: 10ms
delegate: echo
metrics_addr: "127.0.0.1:9100"
`)
	cfg := Defaults()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if !cfg.Listen || cfg.LocalPort != 8888 || cfg.Backlog != 64 {
		t.Errorf("server fields not loaded: %+v", cfg)
	}
	if cfg.Timeout != 2*time.Second || cfg.RetryDelay != 10*time.Millisecond {
		t.Errorf("durations not loaded: %v %v", cfg.Timeout, cfg.RetryDelay)
	}
	if cfg.Delegate != "echo" || cfg.MetricsAddr != "127.0.0.1:9100" {
		t.Errorf("strings not loaded: %+v", cfg)
	}
	// Keys absent from the file keep their defaults.
	if cfg.MaxTries != DefaultMaxTries {
		t.Errorf("MaxTries = %d, want default", cfg.MaxTries)
	}
}

func TestLoadFile_Empty(t *testing.T) {
	cfg := Defaults()
	if err := LoadFile(cfg, writeFile(t, "")); err != nil {
		t.Fatalf("empty file should load: %v", err)
	}
	if cfg.Backlog != DefaultBacklog {
		t.Error("empty file should not change anything")
	}
}

func TestLoadFile_UnknownKey(t *testing.T) {
	err := LoadFile(Defaults(), writeFile(t, "backlgo: 5\n"))
	if err == nil || !strings.Contains(err.Error(), "backlgo") {
		t.Errorf("expected unknown-key error, got %v", err)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if err := LoadFile(Defaults(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "backlog: 64\n")
	t.Setenv("ECHONET_BACKLOG", "128")

	cfg := Defaults()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatal(err)
	}
	LoadFromEnv(cfg)
	if cfg.Backlog != 128 {
		t.Errorf("Backlog = %d, env should win over file", cfg.Backlog)
	}
}
