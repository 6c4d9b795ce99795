package transport

import (
	"context"
	"net"

	ncerr "lineecho/internal/errors"
)

// TCPListener binds a local TCP address.
type TCPListener struct {
	Address  string
	MaxConns int // 0 = unlimited
}

// Listen binds Address.  A port of 0 picks an ephemeral port; the
// returned listener's Addr reports it.
func (l *TCPListener) Listen(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.Address)
	if err != nil {
		return nil, ncerr.Wrap("listen", l.Address, err)
	}
	return limit(ln, l.MaxConns), nil
}

// Close is a no-op; the acceptor owns the listener it was given.
func (l *TCPListener) Close() error { return nil }
