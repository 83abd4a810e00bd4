// Package config defines the runtime configuration for ctfnc and provides
// helpers for parsing ports and SSH jump specifications.
package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	ncerr "ctfnc/internal/errors"
)

// Config holds every tuneable for a single ctfnc session.  The yaml tags
// name the keys accepted by --config files.
type Config struct {
	// ── Target ───────────────────────────────────────────────────────
	Host        string        `yaml:"host"`
	Port        uint16        `yaml:"port"`
	Timeout     time.Duration `yaml:"timeout"`      // idle-read timeout
	DialTimeout time.Duration `yaml:"dial_timeout"` // TCP/SSH connect timeout
	LocalPort   int           `yaml:"local_port"`   // -p: local source port
	NoDNS       bool          `yaml:"no_dns"`
	Retries     int           `yaml:"retries"`

	// ── SSH jump host ────────────────────────────────────────────────
	JumpSpec       string `yaml:"jump"` // raw [user@]host[:port] from -J
	JumpEnabled    bool   `yaml:"-"`
	JumpUser       string `yaml:"-"`
	JumpHost       string `yaml:"-"`
	JumpPort       int    `yaml:"-"`
	SSHKeyPath     string `yaml:"ssh_key"`
	SSHPassword    bool   `yaml:"ssh_password"` // true → prompt interactively
	UseSSHAgent    bool   `yaml:"ssh_agent"`
	StrictHostKey  bool   `yaml:"strict_hostkey"`
	KnownHostsPath string `yaml:"known_hosts"`

	// ── Responder ────────────────────────────────────────────────────
	Send   []string `yaml:"send"`  // scripted reply lines, in order
	Until  string   `yaml:"until"` // regexp that ends the session
	Reply  string   `yaml:"reply"` // line sent while Until has not matched
	Banner bool     `yaml:"banner"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose    int    `yaml:"verbose"`
	Stats      bool   `yaml:"stats"`
	LogFile    string `yaml:"log_file"`
	ConfigFile string `yaml:"-"`
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Timeout:     DefaultIdleTimeout,
		DialTimeout: DefaultDialTimeout,
		Retries:     DefaultRetries,
	}
}

// Interactive reports whether no scripted responder was configured, in
// which case the session is driven from stdin.
func (c *Config) Interactive() bool {
	return len(c.Send) == 0 && c.Until == "" && !c.Banner
}

// ── Port helpers ─────────────────────────────────────────────────────

// ParsePort accepts a decimal port number in 1-65535.
func ParsePort(spec string) (uint16, error) {
	port, err := strconv.Atoi(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return uint16(port), nil
}

// ── Jump-spec parser ─────────────────────────────────────────────────

// jumpRe matches [user@]host[:port].
var jumpRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:@]+)(?::(\d+))?$`)

// ParseJumpSpec extracts user, host, and port from a string such as
// "ctf@bastion.example.com:2222".  Port defaults to 22.
func ParseJumpSpec(spec string) (user, host string, port int, err error) {
	m := jumpRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid jump spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid jump port %q", m[3])
		}
	}
	return user, host, port, nil
}

// ApplyJumpSpec parses JumpSpec, if set, into the Jump* fields.
func (c *Config) ApplyJumpSpec() error {
	if c.JumpSpec == "" {
		return nil
	}
	user, host, port, err := ParseJumpSpec(c.JumpSpec)
	if err != nil {
		return &ncerr.ConfigError{Field: "jump", Value: c.JumpSpec, Message: err.Error()}
	}
	c.JumpEnabled = true
	c.JumpUser, c.JumpHost, c.JumpPort = user, host, port
	return nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Host == "" {
		return ncerr.Missing("host", "pass <host> <port>, set CTFNC_HOST, or add host: to --config")
	}
	if c.Port == 0 {
		return ncerr.Missing("port", "pass <host> <port>, set CTFNC_PORT, or add port: to --config")
	}
	if c.NoDNS && c.JumpSpec == "" && net.ParseIP(c.Host) == nil {
		return &ncerr.ConfigError{
			Field:   "no-dns",
			Value:   c.Host,
			Message: "host is not an IP address",
			Hint:    "drop -n or pass a numeric address",
		}
	}

	if c.Timeout <= 0 {
		return &ncerr.ConfigError{
			Field:   "timeout",
			Value:   c.Timeout,
			Message: "idle timeout must be positive",
			Hint:    "e.g. -w 500ms",
			Err:     ncerr.ErrTimeoutConfig,
		}
	}
	if c.DialTimeout < 0 {
		return &ncerr.ConfigError{Field: "dial-timeout", Value: c.DialTimeout, Message: "must not be negative"}
	}
	if c.Retries < 0 {
		return &ncerr.ConfigError{Field: "retries", Value: c.Retries, Message: "must not be negative"}
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return &ncerr.ConfigError{Field: "local-port", Value: c.LocalPort, Message: "out of range 0-65535"}
	}

	if c.Banner && (len(c.Send) > 0 || c.Until != "") {
		return &ncerr.ConfigError{
			Field:   "banner",
			Message: "cannot be combined with --send or --until",
			Hint:    "--banner stops after the first burst",
		}
	}
	if c.Until != "" {
		if _, err := regexp.Compile(c.Until); err != nil {
			return &ncerr.ConfigError{Field: "until", Value: c.Until, Message: err.Error()}
		}
	}
	if c.Reply != "" && c.Until == "" {
		return &ncerr.ConfigError{
			Field:   "reply",
			Value:   c.Reply,
			Message: "only meaningful with --until",
			Hint:    "use --send for fixed reply lines",
		}
	}

	if c.JumpSpec != "" && !c.JumpEnabled {
		if err := c.ApplyJumpSpec(); err != nil {
			return err
		}
	}
	if c.SSHPassword && c.JumpSpec == "" {
		return &ncerr.ConfigError{
			Field:   "ssh-password",
			Message: "requires an SSH jump host",
			Hint:    "add -J [user@]host[:port]",
		}
	}

	return nil
}
