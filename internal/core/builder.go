package core

import (
	"regexp"

	"ctfnc/config"
	"ctfnc/internal/metrics"
	"ctfnc/internal/responder"
	"ctfnc/internal/transport"
	"ctfnc/netcat"
	"ctfnc/tunnel"
	"ctfnc/util"
)

// Build constructs a Client from a validated configuration.  This is the
// single dispatch point for dialer and responder selection.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (*Client, error) {
	address, err := util.ResolveAddr(cfg.Host, cfg.Port, cfg.NoDNS && !cfg.JumpEnabled)
	if err != nil {
		return nil, err
	}

	r, err := buildResponder(cfg)
	if err != nil {
		return nil, err
	}

	dialer := buildDialer(cfg, logger, m)

	sess := netcat.NewSession().
		WithHost(cfg.Host).
		WithPort(cfg.Port).
		WithTimeout(cfg.Timeout).
		WithStopOnHangup(true).
		WithDialer(dialer).
		WithLogger(logger).
		WithMetrics(m)

	return &Client{
		Session:   sess,
		Dialer:    dialer,
		Responder: r,
		Address:   address,
		Logger:    logger,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the right transport.Dialer for the given config,
// wrapped for retries when asked.
func buildDialer(cfg *config.Config, logger *util.Logger, m *metrics.Collector) transport.Dialer {
	var d transport.Dialer
	if cfg.JumpEnabled {
		d = transport.NewSSHDialer(&tunnel.JumpConfig{
			User:          cfg.JumpUser,
			Host:          cfg.JumpHost,
			Port:          cfg.JumpPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
			ConnTimeout:   cfg.DialTimeout,
		}, logger)
	} else {
		d = &transport.TCPDialer{
			Timeout:   cfg.DialTimeout,
			LocalPort: cfg.LocalPort,
		}
	}

	if cfg.Retries > 0 {
		d = transport.NewRetryDialer(d, cfg.Retries+1, logger, m)
	}
	return d
}

// buildResponder selects the per-burst behaviour.  A nil responder
// means interactive.
func buildResponder(cfg *config.Config) (netcat.Responder, error) {
	if cfg.Interactive() {
		return nil, nil
	}

	var script netcat.Responder
	if len(cfg.Send) > 0 {
		script = responder.Script(cfg.Send)
	}

	switch {
	case cfg.Banner:
		return responder.Banner(), nil
	case cfg.Until != "":
		re, err := regexp.Compile(cfg.Until)
		if err != nil {
			return nil, err
		}
		until := responder.Until(re, cfg.Reply)
		if script != nil {
			return responder.Then(script, until), nil
		}
		return until, nil
	default:
		return script, nil
	}
}
