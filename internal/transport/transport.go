// Package transport provides the sources the acceptor takes
// connections from: a local TCP socket, or a port forwarded from an
// SSH gateway.  What happens over each connection is the capability
// layer's job.
package transport

import (
	"context"
	"net"

	"golang.org/x/net/netutil"
)

// Listener opens the net.Listener the acceptor serves.
type Listener interface {
	// Listen binds and returns the accept source.
	Listen(ctx context.Context) (net.Listener, error)

	// Close releases any long-lived resources held by the source
	// (e.g. an SSH connection).  Stateless sources return nil.
	Close() error
}

// limit caps concurrently open connections on ln.  Accepts beyond the
// cap wait until a connection is closed.  n <= 0 leaves ln unchanged.
func limit(ln net.Listener, n int) net.Listener {
	if n <= 0 {
		return ln
	}
	return netutil.LimitListener(ln, n)
}
