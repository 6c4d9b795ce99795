// Package capability defines what happens over an accepted
// connection.  Each Capability encapsulates a single behaviour and
// operates on a Session rather than a raw net.Conn, which keeps
// capabilities testable and decoupled from transport details.
package capability

import (
	"context"

	"lineecho/internal/session"
)

// Capability handles a single connection according to a specific
// behaviour.  The server ships with Echo.
type Capability interface {
	// Handle runs the capability against the given session.
	// It blocks until the session is done or the context is
	// cancelled.
	Handle(ctx context.Context, sess *session.Session) error
}
