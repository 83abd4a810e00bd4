// Package cmd wires up the CLI flags and dispatches to the session core.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"ctfnc/config"
	"ctfnc/internal/core"
	"ctfnc/internal/metrics"
	"ctfnc/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X ctfnc/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// options are the flags that steer the CLI itself rather than the
// session.
type options struct {
	showVersion bool
	showHelp    bool
	dryRun      bool
}

// stdio bundles the process streams so tests can substitute buffers.
type stdio struct {
	in       io.Reader
	out, err io.Writer
}

// Execute parses args and runs a session.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, stdio{in: os.Stdin, out: os.Stdout, err: os.Stderr})
}

func execute(ctx context.Context, args []string, std stdio) error {
	cfg, opts, fs, err := loadConfig(args)
	if err != nil {
		return err
	}

	if opts.showHelp {
		printUsage(fs, std.err)
		return nil
	}
	if opts.showVersion {
		fmt.Fprintf(std.out, "ctfnc %s\n", version)
		return nil
	}
	// No target from any source: nothing to do but explain.
	if len(args) == 0 && cfg.Host == "" {
		printUsage(fs, std.err)
		return nil
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.dryRun {
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(std.err)
	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		defer rotating.Close()
		logger.SetOutput(io.MultiWriter(std.err, rotating))
		logger.SetTimestamps(true)
	}

	var m *metrics.Collector
	if cfg.Stats {
		m = metrics.New()
	}

	client, err := core.Build(cfg, logger, m)
	if err != nil {
		return err
	}
	client.Stdin = std.in
	client.Stdout = std.out

	runErr := client.Run(ctx)
	if cfg.Stats {
		fmt.Fprintln(std.err, m.JSON())
	}
	return runErr
}

// loadConfig resolves the configuration with precedence
// flags > environment > --config file > defaults.
//
// The flag set is parsed twice: once to learn --config, then again over
// a Config already holding file and environment values, so that only
// flags given explicitly override them.
func loadConfig(args []string) (*config.Config, *options, *flag.FlagSet, error) {
	first := config.Default()
	fs, _ := newFlagSet(first)
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}

	cfg := config.Default()
	if first.ConfigFile != "" {
		if err := config.LoadFile(first.ConfigFile, cfg); err != nil {
			return nil, nil, nil, err
		}
	}
	config.LoadFromEnv(cfg)

	verbose := cfg.Verbose
	fs, opts := newFlagSet(cfg)
	if err := fs.Parse(args); err != nil {
		return nil, nil, nil, err
	}
	if !fs.Changed("verbose") {
		cfg.Verbose = verbose // CountVarP always starts at zero
	}

	if err := parsePositional(cfg, fs.Args()); err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.ApplyJumpSpec(); err != nil {
		return nil, nil, nil, err
	}
	return cfg, opts, fs, nil
}

// newFlagSet binds every flag to cfg, using cfg's current values as the
// flag defaults.
func newFlagSet(cfg *config.Config) (*flag.FlagSet, *options) {
	opts := &options{}
	fs := flag.NewFlagSet("ctfnc", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SortFlags = false

	// ── connection ───────────────────────────────────────────────
	fs.DurationVarP(&cfg.Timeout, "timeout", "w", cfg.Timeout, "Idle timeout that ends each read burst")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "Connect timeout")
	fs.IntVarP(&cfg.LocalPort, "local-port", "p", cfg.LocalPort, "Local source port")
	fs.BoolVarP(&cfg.NoDNS, "no-dns", "n", cfg.NoDNS, "Numeric-only, no DNS resolution")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "Extra connect attempts with backoff")

	// ── responder ────────────────────────────────────────────────
	fs.StringArrayVarP(&cfg.Send, "send", "s", cfg.Send, "Reply line, in order (repeatable)")
	fs.StringVar(&cfg.Until, "until", cfg.Until, "Stop once a burst matches this regexp")
	fs.StringVar(&cfg.Reply, "reply", cfg.Reply, "Line sent while --until has not matched")
	fs.BoolVarP(&cfg.Banner, "banner", "b", cfg.Banner, "Grab the first burst and stop")

	// ── SSH jump host ────────────────────────────────────────────
	fs.StringVarP(&cfg.JumpSpec, "jump", "J", cfg.JumpSpec, "Reach the target via [user@]host[:port] over SSH")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print session counters as JSON on exit")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also write logs to this rotating file")
	fs.StringVarP(&cfg.ConfigFile, "config", "f", cfg.ConfigFile, "YAML config file")

	fs.BoolVar(&opts.dryRun, "dry-run", false, "Validate configuration and exit")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Show this help")

	return fs, opts
}

// ── helpers ──────────────────────────────────────────────────────────

// parsePositional reads "<host> [port]".  Either may also come from the
// environment or a config file.
func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
	case 1:
		cfg.Host = remaining[0]
	case 2:
		cfg.Host = remaining[0]
		port, err := config.ParsePort(remaining[1])
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		cfg.Port = port
	default:
		return fmt.Errorf("too many arguments: expected <host> <port>")
	}
	return nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, `ctfnc – interactive TCP session driver v%s

Talks to line-oriented services that never say when they are done:
each burst ends after the peer has been quiet for the idle timeout.

Usage:
  ctfnc [options] <host> <port>

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  ctfnc chall.example.org 31337                       Interactive
  ctfnc -b chall.example.org 22                       Grab banner
  ctfnc -s guest -s hunter2 chall.example.org 1337    Scripted login
  ctfnc --until 'flag\{' chall.example.org 9000       Press enter until flag
  ctfnc -J ctf@bastion internal-chall 4000            Via SSH jump host
  ctfnc -f session.yaml                               Settings from file
`)
}
