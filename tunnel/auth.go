package tunnel

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	ncerr "ctfnc/internal/errors"
)

// fallbackKeys are looked up in ~/.ssh, in this order, when the jump
// config names no credential at all.
var fallbackKeys = []string{"id_ed25519", "id_ecdsa", "id_rsa"} //nolint:gochecknoglobals

// askSecret reads a passphrase or password without echo.  Tests replace
// it.
var askSecret = terminalSecret //nolint:gochecknoglobals

// BuildAuthMethods returns the SSH credentials to offer the jump host.
// Explicit choices are offered in the order key, agent, password; a
// failure to load any of them is an error.  With no explicit choice the
// running agent and the usual ~/.ssh keys are tried, silently skipping
// what is missing.
func BuildAuthMethods(cfg *JumpConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.KeyPath != "" {
		m, err := keyFile(cfg.KeyPath)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	if cfg.UseAgent {
		m, err := agentSigners()
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	if cfg.PromptPass {
		pass, err := askSecret(fmt.Sprintf("%s@%s's password: ", cfg.User, cfg.Host))
		if err != nil {
			return nil, err
		}
		methods = append(methods, ssh.Password(string(pass)))
	}
	if len(methods) > 0 {
		return methods, nil
	}

	if m, err := agentSigners(); err == nil {
		methods = append(methods, m)
	}
	for _, p := range fallbackKeyPaths() {
		if m, err := keyFile(p); err == nil {
			methods = append(methods, m)
		}
	}
	if len(methods) == 0 {
		return nil, errors.New("no SSH credentials found; use --ssh-key, --ssh-agent or --ssh-password")
	}
	return methods, nil
}

// keyFile loads a private key, asking for its passphrase when it is
// encrypted.
func keyFile(path string) (ssh.AuthMethod, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", path, err)
	}

	signer, err := ssh.ParsePrivateKey(pem)
	var locked *ssh.PassphraseMissingError
	if errors.As(err, &locked) {
		pass, perr := askSecret(fmt.Sprintf("Enter passphrase for %s: ", path))
		if perr != nil {
			return nil, perr
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, pass)
	}
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", path, err)
	}
	return ssh.PublicKeys(signer), nil
}

// agentSigners offers every identity held by the agent on
// $SSH_AUTH_SOCK.
func agentSigners() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, errors.New("ssh-agent: SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("ssh-agent: %w", err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

func fallbackKeyPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	paths := make([]string, 0, len(fallbackKeys))
	for _, name := range fallbackKeys {
		p := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

// terminalSecret prompts on stderr and reads one line from stdin with
// echo off.  A secret cannot come from a pipe.
func terminalSecret(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("cannot ask %q: stdin is not a terminal", strings.TrimSpace(prompt))
	}

	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return secret, err
}

// hostKeyCallback accepts any jump host key unless strict checking is
// on, in which case the key must match known_hosts.
func hostKeyCallback(cfg *JumpConfig) (ssh.HostKeyCallback, error) {
	if !cfg.StrictHostKey {
		//nolint:gosec // checking was switched off by the user
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := cfg.KnownHosts
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}

	check, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("known_hosts %s: %w", path, err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		var ke *knownhosts.KeyError
		if errors.As(err, &ke) && len(ke.Want) > 0 {
			return fmt.Errorf("%w: %s offered %s", ncerr.ErrHostKeyMismatch, hostname, ssh.FingerprintSHA256(key))
		}
		return err
	}, nil
}

// classifyHandshake tags a failed SSH handshake with the matching
// sentinel so callers can tell a refused login from a network fault.
func classifyHandshake(err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, ncerr.ErrHostKeyMismatch):
		return err
	case strings.Contains(msg, ncerr.ErrHostKeyMismatch.Error()):
		return fmt.Errorf("%w: %w", ncerr.ErrHostKeyMismatch, err)
	case strings.Contains(msg, "unable to authenticate"):
		return fmt.Errorf("%w: %w", ncerr.ErrAuthFailed, err)
	}
	return err
}
