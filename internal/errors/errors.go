// Package errors provides domain-specific error types for ctfnc.
//
// Only connection establishment can fail loudly: the dial, the idle-timeout
// setup, and session validation.  The types here carry enough structure
// (operation, address, kind) for callers to branch with errors.Is and
// errors.As instead of matching strings.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	// ErrUnreachable means the TCP connect to the target failed.
	ErrUnreachable = errors.New("unable to connect to remote")
	// ErrTimeoutConfig means the idle-read timeout could not be applied.
	ErrTimeoutConfig = errors.New("unable to set read timeout")
	// ErrIncomplete means a session was run without host, port or responder.
	ErrIncomplete = errors.New("configuration incomplete")

	// ErrAuthFailed means the SSH jump host refused every offered
	// credential.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrHostKeyMismatch means the jump host presented a key that
	// contradicts known_hosts.
	ErrHostKeyMismatch = errors.New("host key mismatch")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure while establishing a connection.
type NetworkError struct {
	Op   string // "dial" or "set-timeout"
	Addr string // network address involved
	Kind error  // ErrUnreachable or ErrTimeoutConfig
	Err  error  // underlying error, may be nil
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Kind)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *NetworkError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey", "dial"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid or missing configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
	Err     error       // sentinel kind, usually ErrIncomplete
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ── Constructors ─────────────────────────────────────────────────────

// Unreachable wraps a dial failure.
func Unreachable(addr string, err error) *NetworkError {
	return &NetworkError{Op: "dial", Addr: addr, Kind: ErrUnreachable, Err: err}
}

// TimeoutConfig wraps a failure to apply the idle-read timeout.
func TimeoutConfig(addr string, err error) *NetworkError {
	return &NetworkError{
		Op:   "set-timeout",
		Addr: addr,
		Kind: ErrTimeoutConfig,
		Err:  err,
	}
}

// Missing reports a required session field that was never set.
func Missing(field, hint string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: "required",
		Hint:    hint,
		Err:     ErrIncomplete,
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// Redialable reports whether dialing again could plausibly turn err into
// a connection.  A refused or reset connect is worth another try; a
// cancelled context, rejected credentials, a changed host key or a bad
// configuration are not.
func Redialable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrAuthFailed), errors.Is(err, ErrHostKeyMismatch):
		return false
	case errors.Is(err, ErrTimeoutConfig), errors.Is(err, ErrIncomplete):
		return false
	}
	return true
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
