package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"lineecho/tunnel"
	"lineecho/util"
)

// SSHListener accepts connections forwarded from a port on an SSH
// gateway, so peers reach the echo server through the gateway.  The
// gateway is connected on the first Listen, reconnected by a later
// Listen if it has dropped, and torn down on Close.  RemotePort 0 lets
// the gateway pick the port.
type SSHListener struct {
	Gateway     *tunnel.SSHGateway
	BindAddress string // remote bind address ("" = gateway default)
	RemotePort  int
	MaxConns    int
	Logger      *util.Logger

	mu        sync.Mutex
	connected bool
}

// Listen connects the gateway if needed and requests the remote port.
func (l *SSHListener) Listen(ctx context.Context) (net.Listener, error) {
	if err := l.connect(ctx); err != nil {
		return nil, err
	}

	ln, err := l.Gateway.Listen(l.BindAddress, l.RemotePort)
	if err != nil {
		return nil, err
	}
	l.Logger.Info("gateway forwarding %s to this server", ln.Addr())
	return limit(ln, l.MaxConns), nil
}

func (l *SSHListener) connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connected {
		if l.Gateway.IsAlive() {
			return nil
		}
		l.Logger.Warn("SSH gateway connection lost, reconnecting")
		l.Gateway.Close() //nolint:errcheck
		l.connected = false
	}
	if err := l.Gateway.Connect(ctx); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	l.connected = true
	l.Logger.Verbose("SSH gateway connected")
	return nil
}

// Close tears down the SSH connection and its remote listener.
func (l *SSHListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connected {
		l.connected = false
		return l.Gateway.Close()
	}
	return nil
}
