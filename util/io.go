package util

import (
	"errors"
	"io"
	"net"
	"os"
)

// DefaultBufSize is the initial line buffer size for a session (4 KiB).
// Longer lines are still accepted; the buffer grows as needed.
const DefaultBufSize = 4 * 1024

// IsHarmless returns true for errors that are expected when a peer goes
// away or the server is shutting down.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// IsTimeout reports whether err is a deadline expiry on a connection.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
