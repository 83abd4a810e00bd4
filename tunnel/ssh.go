package tunnel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "ctfnc/internal/errors"
	"ctfnc/util"
)

// JumpConfig describes the SSH jump host and how to authenticate to it.
type JumpConfig struct {
	User          string
	Host          string
	Port          int           // default 22
	KeyPath       string        // explicit private key
	PromptPass    bool          // ask for a password on the terminal
	UseAgent      bool          // use $SSH_AUTH_SOCK
	StrictHostKey bool          // verify against KnownHosts
	KnownHosts    string        // default ~/.ssh/known_hosts
	ConnTimeout   time.Duration // TCP connect + handshake, default 30s
}

func (c *JumpConfig) addr() string {
	return util.FormatAddr(c.Host, uint16(c.Port))
}

// Jump forwards TCP connections through one SSH jump host.  The SSH
// connection is opened on the first Dial and re-opened if it has died
// since; it is safe to share between goroutines.
type Jump struct {
	config *JumpConfig
	logger *util.Logger

	mu     sync.Mutex
	client *ssh.Client
}

// NewJump fills defaults into cfg and returns an unconnected Jump.
func NewJump(cfg *JumpConfig, logger *util.Logger) *Jump {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Jump{config: cfg, logger: logger}
}

// Dial asks the jump host to open a direct-tcpip channel to address and
// returns it as a net.Conn with working deadlines.
func (j *Jump) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	client, err := j.connected(ctx)
	if err != nil {
		return nil, err
	}

	j.logger.Debug("ssh: forwarding %s %s via %s", network, address, j.config.addr())
	channel, err := client.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("via %s: %w", j.config.addr(), err)
	}
	return withDeadlines(channel), nil
}

// Alive reports whether the SSH connection is currently open.
func (j *Jump) Alive() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.client != nil
}

// Close shuts the SSH connection down.  Forwarded connections die with
// it.
func (j *Jump) Close() error {
	j.mu.Lock()
	client := j.client
	j.client = nil
	j.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// connected returns the live client, handshaking first if needed.
func (j *Jump) connected(ctx context.Context) (*ssh.Client, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.client != nil {
		return j.client, nil
	}

	j.logger.Verbose("opening SSH jump %s@%s", j.config.User, j.config.addr())
	client, err := j.handshake(ctx)
	if err != nil {
		return nil, err
	}
	j.logger.Verbose("SSH jump established")

	j.client = client
	go j.watch(client)
	return client, nil
}

func (j *Jump) handshake(ctx context.Context) (*ssh.Client, error) {
	cfg := j.config

	auth, err := BuildAuthMethods(cfg)
	if err != nil {
		return nil, ncerr.WrapSSH("auth", cfg.Host, cfg.Port, err)
	}
	verify, err := hostKeyCallback(cfg)
	if err != nil {
		return nil, ncerr.WrapSSH("hostkey", cfg.Host, cfg.Port, err)
	}

	d := net.Dialer{Timeout: cfg.ConnTimeout}
	tcp, err := d.DialContext(ctx, "tcp", cfg.addr())
	if err != nil {
		return nil, ncerr.WrapSSH("dial", cfg.Host, cfg.Port, err)
	}

	conn, chans, reqs, err := ssh.NewClientConn(tcp, cfg.addr(), &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: verify,
		Timeout:         cfg.ConnTimeout,
	})
	if err != nil {
		tcp.Close()
		return nil, ncerr.WrapSSH("handshake", cfg.Host, cfg.Port, classifyHandshake(err))
	}
	return ssh.NewClient(conn, chans, reqs), nil
}

// watch forgets client once its connection ends so the next Dial
// reconnects.
func (j *Jump) watch(client *ssh.Client) {
	err := client.Wait()

	j.mu.Lock()
	if j.client == client {
		j.client = nil
	}
	j.mu.Unlock()

	j.logger.Debug("ssh: jump connection to %s closed: %v", j.config.addr(), err)
}
