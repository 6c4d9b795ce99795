// Package tunnel publishes the echo server on an SSH gateway: it dials
// the gateway with golang.org/x/crypto/ssh and asks it to forward a
// remote port back to us (the equivalent of ssh -R).
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	ncerr "lineecho/internal/errors"
	"lineecho/internal/retry"
	"lineecho/util"
)

// SSHConfig holds everything needed to dial an SSH gateway.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PromptPass    bool
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
}

// SSHGateway is a connected SSH client that can open remote listeners.
type SSHGateway struct {
	config  *SSHConfig
	backoff *retry.Backoff
	client  *ssh.Client
	logger  *util.Logger
	mu      sync.RWMutex
	alive   bool
}

// NewSSHGateway creates a gateway that is ready to [SSHGateway.Connect].
// A nil backoff makes a single attempt.
func NewSSHGateway(cfg *SSHConfig, backoff *retry.Backoff, logger *util.Logger) *SSHGateway {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	if backoff == nil {
		backoff = &retry.Backoff{MaxAttempts: 1}
	}
	return &SSHGateway{config: cfg, backoff: backoff, logger: logger}
}

// Connect dials the gateway and completes the handshake, retrying
// transient network failures.  Authentication and host-key failures
// are never retried.
func (g *SSHGateway) Connect(ctx context.Context) error {
	authMethods, err := BuildAuthMethods(g.config)
	if err != nil {
		return ncerr.WrapSSH("auth", g.config.Host, g.config.Port, err)
	}

	hkCallback, err := hostKeyCallback(g.config)
	if err != nil {
		return ncerr.WrapSSH("hostkey", g.config.Host, g.config.Port, err)
	}

	sshCfg := &ssh.ClientConfig{
		User:            g.config.User,
		Auth:            authMethods,
		HostKeyCallback: hkCallback,
		Timeout:         g.config.ConnTimeout,
		BannerCallback: func(message string) error {
			g.logger.Info("%s", message)
			return nil
		},
	}

	addr := util.FormatAddr(g.config.Host, g.config.Port)

	b := *g.backoff
	b.RetryIf = isTransient
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		g.logger.Warn("gateway %s attempt %d failed: %v (retrying in %s)",
			addr, attempt, err, wait.Truncate(time.Millisecond))
	}

	var client *ssh.Client
	err = b.Do(ctx, func(int) error {
		c, err := g.dial(ctx, addr, sshCfg)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.client = client
	g.alive = true
	g.mu.Unlock()

	go g.monitor(client)

	return nil
}

func (g *SSHGateway) dial(ctx context.Context, addr string, sshCfg *ssh.ClientConfig) (*ssh.Client, error) {
	g.logger.Debug("SSH: dialing %s as %s", addr, g.config.User)

	// Use a context-aware TCP dial so callers can cancel.
	dialer := net.Dialer{Timeout: g.config.ConnTimeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, ncerr.Wrap("dial", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		return nil, ncerr.WrapSSH("handshake", g.config.Host, g.config.Port, classifyHandshake(err))
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// Listen asks the gateway to accept connections on bindAddr:port and
// forward them to us.  Port 0 lets the gateway choose; the returned
// listener's Addr reports the port it picked.
func (g *SSHGateway) Listen(bindAddr string, port int) (net.Listener, error) {
	g.mu.RLock()
	client, alive := g.client, g.alive
	g.mu.RUnlock()

	if !alive || client == nil {
		return nil, ncerr.ErrNotConnected
	}

	remote := util.FormatAddr(bindAddr, port)
	ln, err := client.Listen("tcp", remote)
	if err != nil {
		return nil, ncerr.WrapSSH("forward", g.config.Host, g.config.Port,
			fmt.Errorf("remote listen on %s: %w", remote, err))
	}
	return ln, nil
}

// Close shuts down the SSH connection, and with it every remote
// listener opened through it.
func (g *SSHGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.alive = false
	if g.client != nil {
		err := g.client.Close()
		g.client = nil
		return err
	}
	return nil
}

// IsAlive reports whether the gateway is still connected.
func (g *SSHGateway) IsAlive() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.alive
}

// monitor blocks until the SSH connection closes and flips the alive flag.
func (g *SSHGateway) monitor(client *ssh.Client) {
	err := client.Wait()

	g.mu.Lock()
	if g.client == client {
		g.alive = false
	}
	g.mu.Unlock()

	if err != nil {
		g.logger.Debug("SSH gateway closed: %v", err)
	} else {
		g.logger.Debug("SSH gateway closed")
	}
}

// classifyHandshake tags authentication and host-key rejections with
// their sentinels so callers (and the retry loop) can tell them apart
// from network trouble.
func classifyHandshake(err error) error {
	var keyErr *knownhosts.KeyError
	switch {
	case errors.As(err, &keyErr):
		return fmt.Errorf("%w: %v", ncerr.ErrHostKeyMismatch, err)
	case strings.Contains(err.Error(), "unable to authenticate"):
		return fmt.Errorf("%w: %v", ncerr.ErrAuthFailed, err)
	default:
		return err
	}
}

// isTransient reports whether a gateway failure is worth another
// attempt.  Dial failures follow the network error classification, so
// a refused port is retried and an unresolvable host is not.  After the
// handshake starts, only rejected credentials and unknown host keys
// are permanent.
func isTransient(err error) bool {
	var ne *ncerr.NetworkError
	if errors.As(err, &ne) {
		return ncerr.IsRetryable(ne)
	}
	return !errors.Is(err, ncerr.ErrAuthFailed) &&
		!errors.Is(err, ncerr.ErrHostKeyMismatch)
}
