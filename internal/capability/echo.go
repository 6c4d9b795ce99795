package capability

import (
	"context"
	"fmt"

	ncerr "lineecho/internal/errors"
	"lineecho/internal/session"
	"lineecho/util"
)

// Diagnostic replaces a line whose bytes are not valid UTF-8.
const Diagnostic = "Error: stream did not contain valid UTF-8\n"

type echoState int

const (
	stateReading echoState = iota
	stateWriting
	stateClosed
)

// Echo writes every line received from the peer back to it unchanged.
// Reads and writes strictly alternate, so one peer always sees its
// lines in the order it sent them.
type Echo struct{}

// Handle runs the Reading → Writing → Reading loop until the peer
// closes its side (nil), the read half fails, or a write fails.
// Cancelling ctx closes the connection, which ends the loop at its
// next suspension point.
func (e *Echo) Handle(ctx context.Context, sess *session.Session) error {
	stop := context.AfterFunc(ctx, func() { sess.Close() }) //nolint:errcheck
	defer stop()

	var (
		state     = stateReading
		pending   []byte
		malformed bool
		err       error
	)
	for state != stateClosed {
		switch state {
		case stateReading:
			f := sess.ReadLine()
			switch f.Kind {
			case session.KindLine:
				pending, malformed = f.Data, false
				state = stateWriting
			case session.KindMalformed:
				sess.Logger.Debug("%v, sending diagnostic", ncerr.ErrMalformedLine)
				pending, malformed = []byte(Diagnostic), true
				state = stateWriting
			case session.KindEOF:
				state = stateClosed
			default:
				err = readError(sess, f.Err)
				state = stateClosed
			}

		case stateWriting:
			if werr := sess.Write(pending); werr != nil {
				err = ncerr.Wrap("write", sess.RemoteAddr(), werr)
				state = stateClosed
				continue
			}
			if malformed {
				sess.Metrics.LineMalformed()
			} else {
				sess.Metrics.LineEchoed()
			}
			pending = nil
			state = stateReading
		}
	}

	// A connection closed by our own shutdown is not a session failure.
	if ctx.Err() != nil && util.IsHarmless(err) {
		return nil
	}
	return err
}

func readError(sess *session.Session, err error) error {
	if util.IsTimeout(err) {
		return fmt.Errorf("%s: %w", sess.RemoteAddr(), ncerr.ErrIdleTimeout)
	}
	return ncerr.Wrap("read", sess.RemoteAddr(), err)
}
