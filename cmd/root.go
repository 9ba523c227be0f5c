// Package cmd wires up the CLI flags and dispatches to the echonet core.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"echonet/config"
	"echonet/internal/core"
	"echonet/internal/delegate"
	"echonet/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X echonet/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// usageOut receives help text.  Tests swap it out.
var usageOut io.Writer = os.Stderr //nolint:gochecknoglobals

// Execute parses args and runs the appropriate echonet mode.
//
// Settings are layered: defaults, then the YAML file named by --config
// (or ECHONET_CONFIG), then ECHONET_* environment variables, then
// flags.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Defaults()

	// ── config file & environment ────────────────────────────────
	path, err := configPath(args)
	if err != nil {
		return err
	}
	if path != "" {
		if err := config.LoadFile(cfg, path); err != nil {
			return err
		}
		cfg.ConfigFile = path
	}
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("echonet", flag.ContinueOnError)
	fs.SetOutput(usageOut)

	// ── connection ───────────────────────────────────────────────
	fs.BoolVarP(&cfg.Listen, "listen", "l", cfg.Listen, "Listen mode (run a server)")
	fs.IntVarP(&cfg.LocalPort, "port", "p", cfg.LocalPort, "Local port number to listen on")
	fs.BoolVarP(&cfg.UDP, "udp", "u", cfg.UDP, "UDP mode")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")

	timeoutSec := int(cfg.Timeout / time.Second)
	fs.IntVarP(&timeoutSec, "timeout", "w", timeoutSec, "Per-operation timeout in seconds")

	// ── server ───────────────────────────────────────────────────
	fs.IntVarP(&cfg.Backlog, "backlog", "b", cfg.Backlog, "Pending-connection backlog (TCP listen)")
	fs.StringVarP(&cfg.Delegate, "delegate", "d", cfg.Delegate,
		fmt.Sprintf("Message processor %v", delegate.Names()))
	fs.StringVarP(&cfg.Exec, "exec", "e", cfg.Exec, "Pipe each message through a shell command instead")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Serve Prometheus metrics on host:port")

	// ── datagram client ──────────────────────────────────────────
	fs.IntVarP(&cfg.MaxTries, "tries", "t", cfg.MaxTries, "Send/receive attempts per UDP request")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "Pause between UDP attempts")
	fs.BoolVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Double the UDP pause after each attempt, with jitter")

	// ── smoke test ───────────────────────────────────────────────
	fs.BoolVar(&cfg.Smoke, "smoke", cfg.Smoke, "Smoke-test a server with concurrent clients")
	fs.IntVarP(&cfg.Connections, "connections", "c", cfg.Connections, "Concurrent smoke-test clients")
	fs.IntVar(&cfg.MessageSize, "message-size", cfg.MessageSize, "Longest random smoke-test message")

	// ── output ───────────────────────────────────────────────────
	baseVerbose := cfg.Verbose // CountVarP zeroes its target
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var configFile string
	fs.StringVar(&configFile, "config", path, "YAML config file")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate the configuration and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("echonet %s\n", version)
		return nil
	}

	if fs.Changed("timeout") {
		cfg.Timeout = time.Duration(timeoutSec) * time.Second
	}
	if !fs.Changed("verbose") {
		cfg.Verbose = baseVerbose
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.NewLogger(cfg.Verbose)
	if cfg.ConfigFile != "" {
		logger.Verbose("loaded config from %s", cfg.ConfigFile)
	}
	if cfg.DryRun {
		logger.Info("configuration is valid (%s mode)", modeName(cfg))
		return nil
	}

	// ── build & run ──────────────────────────────────────────────
	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// configPath finds --config without parsing the remaining flags, so the
// file can supply their defaults.
func configPath(args []string) (string, error) {
	pre := flag.NewFlagSet("echonet-config", flag.ContinueOnError)
	pre.SetOutput(io.Discard)
	pre.ParseErrorsWhitelist.UnknownFlags = true
	pre.Usage = func() {}

	var path string
	pre.StringVar(&path, "config", config.ConfigPathFromEnv(), "")
	pre.BoolP("help", "h", false, "")
	if err := pre.Parse(args); err != nil {
		return "", err
	}
	return path, nil
}

func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		switch len(remaining) {
		case 0: // echonet -l -p PORT
		case 1: // echonet -l PORT
			port, err := config.ParsePort(remaining[0])
			if err != nil {
				return fmt.Errorf("port: %w", err)
			}
			cfg.LocalPort = port
		default:
			return fmt.Errorf("too many arguments for listen mode")
		}
		return nil
	}

	// Connect / smoke mode: host port
	switch len(remaining) {
	case 0:
		if cfg.Host == "" {
			return fmt.Errorf("hostname required (use --help for usage)")
		}
		return nil
	case 1:
		cfg.Host = remaining[0]
		if cfg.Port == 0 {
			return fmt.Errorf("port required")
		}
		return nil
	case 2:
		cfg.Host = remaining[0]
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return fmt.Errorf("port %q: %w", remaining[1], err)
		}
		cfg.Port = port
		return nil
	}
	return fmt.Errorf("too many arguments: expected <host> <port>")
}

func modeName(cfg *config.Config) string {
	switch {
	case cfg.Listen:
		return cfg.Network() + " server"
	case cfg.Smoke:
		return cfg.Network() + " smoke test"
	}
	return cfg.Network() + " client"
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(usageOut, `echonet – TCP/UDP message server and client v%s

Usage:
  echonet -l -p <port> [options]              Serve over TCP (or UDP with -u)
  echonet [options] <host> <port>             Interactive client
  echonet --smoke [options] <host> <port>     Smoke-test a server

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(usageOut, `
Examples:
  echonet -l -p 8888                          TCP server, number-summing delegate
  echonet -lu -p 8888 -d echo                 UDP echo server
  echonet -l -p 8888 -e 'tr a-z A-Z'          Reply with each message upper-cased
  echonet -l -p 8888 --metrics-addr :9100     Expose Prometheus metrics
  echonet 127.0.0.1 8888                      Send lines over TCP
  echonet -u -t 3 127.0.0.1 8888              Send lines over UDP, 3 tries each
  echonet --smoke -c 512 127.0.0.1 8888       512 concurrent clients
`)
}
