package config

import "ctfnc/netcat"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultIdleTimeout is how long a burst may stay silent before the
	// drain read considers it finished.
	DefaultIdleTimeout = netcat.DefaultTimeout

	// DefaultDialTimeout bounds the TCP (or SSH jump) connect.
	DefaultDialTimeout = netcat.DefaultDialTimeout

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultReadBufSize is the size of each socket read inside a drain.
	DefaultReadBufSize = netcat.ReadBufSize

	// DefaultRetries is the number of extra dial attempts; zero means a
	// single attempt.
	DefaultRetries = 0

	// EnvPrefix is prepended to every environment variable name.
	EnvPrefix = "CTFNC_"
)
