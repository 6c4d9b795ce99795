// Package session represents a single connection lifecycle: the
// accepted connection, its reusable line buffer, and the shared logger
// and metrics.
//
// A Session is owned by exactly one handler goroutine.  Nothing in it
// is safe for concurrent use except Close.
package session

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"
	"unicode/utf8"

	"lineecho/internal/metrics"
	"lineecho/util"
)

// Delimiter terminates one message in the line protocol.
const Delimiter = '\n'

// Kind tags the outcome of a single ReadLine.
type Kind int

const (
	// KindLine carries a decoded line, delimiter included when present.
	KindLine Kind = iota
	// KindMalformed means the bytes up to the delimiter were not valid
	// UTF-8.  They have been consumed and discarded.
	KindMalformed
	// KindEOF means the peer closed its side with nothing pending.
	KindEOF
	// KindError means the read half failed; the session cannot go on.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindLine:
		return "line"
	case KindMalformed:
		return "malformed"
	case KindEOF:
		return "eof"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Frame is the tagged result of reading one line.  Data aliases the
// session's buffer and is only valid until the next ReadLine.
type Frame struct {
	Kind Kind
	Data []byte
	Err  error
}

// Session encapsulates the runtime context for a single connection.
type Session struct {
	Conn    net.Conn
	Logger  *util.Logger
	Metrics *metrics.Collector

	// IdleTimeout, when positive, bounds each wait for the next line.
	IdleTimeout time.Duration

	reader    *bufio.Reader
	buf       []byte
	closeOnce sync.Once
	closeErr  error
}

// New creates a Session bound to conn with a pooled line reader.
func New(conn net.Conn, logger *util.Logger, m *metrics.Collector) *Session {
	return &Session{
		Conn:    conn,
		Logger:  logger,
		Metrics: m,
		reader:  util.GetReader(conn),
		buf:     make([]byte, 0, 256),
	}
}

// RemoteAddr returns the peer address, or "unknown" for transports that
// do not report one.
func (s *Session) RemoteAddr() string {
	if a := s.Conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return "unknown"
}

// ReadLine reads up to and including the next Delimiter.  A final line
// without a delimiter is returned as KindLine; the following call then
// reports KindEOF.
func (s *Session) ReadLine() Frame {
	if s.IdleTimeout > 0 {
		s.Conn.SetReadDeadline(time.Now().Add(s.IdleTimeout)) //nolint:errcheck
	}

	s.buf = s.buf[:0]
	for {
		chunk, err := s.reader.ReadSlice(Delimiter)
		s.buf = append(s.buf, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.Metrics.BytesReceived(int64(len(s.buf)))
				return Frame{Kind: KindError, Err: err}
			}
			if len(s.buf) == 0 {
				return Frame{Kind: KindEOF}
			}
		}
		break
	}

	s.Metrics.BytesReceived(int64(len(s.buf)))
	if !utf8.Valid(s.buf) {
		return Frame{Kind: KindMalformed}
	}
	return Frame{Kind: KindLine, Data: s.buf}
}

// Write sends p in full on the write half.
func (s *Session) Write(p []byte) error {
	n, err := s.Conn.Write(p)
	s.Metrics.BytesSent(int64(n))
	return err
}

// Close releases the connection.  It is safe to call more than once
// and from another goroutine.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.Conn.Close()
	})
	return s.closeErr
}

// Release returns pooled resources.  Only the owning goroutine may call
// it, after its last ReadLine.
func (s *Session) Release() {
	util.PutReader(s.reader)
	s.reader = nil
}
