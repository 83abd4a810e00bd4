package config

// A value set in more than one place resolves as: flag, then CTFNC_*
// environment variable, then the --config YAML file, then Default().
// The flag layer lives in cmd.

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFromEnv overlays CTFNC_* variables onto cfg.  Empty or malformed
// values leave the field alone.  Booleans accept 1, true or yes in any
// case; durations take Go syntax ("750ms") or bare milliseconds.
func LoadFromEnv(cfg *Config) {
	if v := env("HOST"); v != "" {
		cfg.Host = v
	}
	if v := env("PORT"); v != "" {
		if port, err := ParsePort(v); err == nil {
			cfg.Port = port
		}
	}
	if d, ok := envDuration("TIMEOUT"); ok {
		cfg.Timeout = d
	}
	if d, ok := envDuration("DIAL_TIMEOUT"); ok {
		cfg.DialTimeout = d
	}
	if v := envInt("LOCAL_PORT"); v > 0 {
		cfg.LocalPort = v
	}
	if envBool("NO_DNS") {
		cfg.NoDNS = true
	}
	if v := envInt("RETRIES"); v > 0 {
		cfg.Retries = v
	}

	// SSH jump host
	if v := env("JUMP"); v != "" {
		cfg.JumpSpec = v
	}
	if v := env("SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := env("KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Responder
	if v := env("UNTIL"); v != "" {
		cfg.Until = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "REPLY"); ok {
		cfg.Reply = v
	}

	// Output
	if v := envInt("VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if envBool("STATS") {
		cfg.Stats = true
	}
	if v := env("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func env(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func envInt(key string) int {
	v := env(key)
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
	v := strings.ToLower(env(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) (time.Duration, bool) {
	v := env(key)
	if v == "" {
		return 0, false
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, true
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
