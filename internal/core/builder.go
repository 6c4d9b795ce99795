package core

import (
	"lineecho/config"
	"lineecho/internal/capability"
	"lineecho/internal/metrics"
	"lineecho/internal/retry"
	"lineecho/internal/transport"
	"lineecho/tunnel"
	"lineecho/util"
)

// Build constructs the appropriate Mode from the given configuration.
// This is the single dispatch point between the CLI and the modes.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if cfg.Join {
		return buildJoin(cfg, logger), nil
	}
	return buildServe(cfg, logger), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, logger *util.Logger) Mode {
	return &ServeMode{
		Listener:    buildListener(cfg, logger),
		Capability:  &capability.Echo{},
		IdleTimeout: cfg.IdleTimeout,
		Grace:       config.DefaultShutdownGrace,
		Logger:      logger,
		Metrics:     metrics.New(),
	}
}

func buildJoin(cfg *config.Config, logger *util.Logger) Mode {
	return &JoinMode{
		Tasks:   cfg.Tasks,
		Step:    cfg.TaskStep,
		Workers: cfg.JoinWorkers,
		Logger:  logger,
		Metrics: metrics.New(),
	}
}

// ── shared helpers ───────────────────────────────────────────────────

// buildListener picks the accept source: a local socket, or a port
// forwarded from an SSH gateway when --tunnel is set.
func buildListener(cfg *config.Config, logger *util.Logger) transport.Listener {
	if !cfg.TunnelEnabled {
		return &transport.TCPListener{
			Address:  cfg.Address,
			MaxConns: cfg.MaxConns,
		}
	}

	backoff := retry.DefaultBackoff()
	backoff.MaxAttempts = config.DefaultGatewayAttempts

	gw := tunnel.NewSSHGateway(&tunnel.SSHConfig{
		User:          cfg.TunnelUser,
		Host:          cfg.TunnelHost,
		Port:          cfg.TunnelPort,
		KeyPath:       cfg.SSHKeyPath,
		PromptPass:    cfg.SSHPassword,
		UseAgent:      cfg.UseSSHAgent,
		StrictHostKey: cfg.StrictHostKey,
		KnownHosts:    cfg.KnownHostsPath,
		ConnTimeout:   config.DefaultConnTimeout,
	}, backoff, logger)

	return &transport.SSHListener{
		Gateway:     gw,
		BindAddress: cfg.RemoteBindAddress,
		RemotePort:  cfg.RemotePort,
		MaxConns:    cfg.MaxConns,
		Logger:      logger,
	}
}
