package core

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"lineecho/internal/capability"
	ncerr "lineecho/internal/errors"
	"lineecho/internal/metrics"
	"lineecho/internal/session"
	"lineecho/internal/transport"
	"lineecho/util"
)

// ServeMode accepts inbound connections and runs a capability on each
// one in its own goroutine.  Accepting never waits on a session, and
// sessions are neither capped nor queued unless the listener imposes a
// limit.
type ServeMode struct {
	Listener    transport.Listener
	Capability  capability.Capability
	IdleTimeout time.Duration
	Logger      *util.Logger
	Metrics     *metrics.Collector

	// Grace bounds how long shutdown waits for sessions to release
	// their connections.  Zero waits indefinitely.
	Grace time.Duration
}

// Run binds the listener and serves it until ctx is cancelled (nil)
// or accepting fails (the accept error).
func (m *ServeMode) Run(ctx context.Context) error {
	defer m.Listener.Close()

	ln, err := m.Listener.Listen(ctx)
	if err != nil {
		return err
	}

	m.Logger.Info("listening on %s", ln.Addr())
	err = m.Serve(ctx, ln)
	m.Logger.Verbose("metrics:\n%s", m.Metrics.JSON())
	return err
}

// Serve runs the accept loop on ln, which it closes before returning.
// A failed accept ends the loop; it is not retried.
func (m *ServeMode) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() }) //nolint:errcheck
	defer stop()
	defer ln.Close()

	log := m.Logger.Named("acceptor")

	// Handles are tracked only so shutdown can wait for them.
	var sessions sync.WaitGroup

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				m.drain(&sessions, log)
				return nil
			}
			m.Metrics.RecordError(err.Error())
			return ncerr.Wrap("accept", ln.Addr().String(), err)
		}

		sessions.Add(1)
		go func() {
			defer sessions.Done()
			m.serveConn(ctx, conn)
		}()
	}
}

// drain waits for every session to finish after shutdown closed the
// listener.  Sessions close their own connections on cancellation, so
// this is normally quick.
func (m *ServeMode) drain(sessions *sync.WaitGroup, log *util.Logger) {
	done := make(chan struct{})
	go func() {
		sessions.Wait()
		close(done)
	}()

	if m.Grace <= 0 {
		<-done
		return
	}
	select {
	case <-done:
	case <-time.After(m.Grace):
		log.Warn("%d session(s) still open after %s", m.Metrics.ActiveSessions(), m.Grace)
	}
}

func (m *ServeMode) serveConn(ctx context.Context, conn net.Conn) {
	sess := session.New(conn, m.Logger, m.Metrics)
	peer := sess.RemoteAddr()
	sess.Logger = m.Logger.Named(peer)
	sess.IdleTimeout = m.IdleTimeout

	m.Metrics.SessionOpened()
	m.Logger.Info("peer connected: %s", peer)

	defer func() {
		sess.Close() //nolint:errcheck
		sess.Release()
		m.Metrics.SessionClosed()
		m.Logger.Info("peer disconnected: %s", peer)
	}()

	err := m.Capability.Handle(ctx, sess)
	switch {
	case util.IsHarmless(err):
	case errors.Is(err, ncerr.ErrIdleTimeout):
		m.Logger.Warn("peer %s idle for %s, closing", peer, m.IdleTimeout)
	default:
		m.Metrics.RecordError(err.Error())
		m.Logger.Error("session %s: %v", peer, err)
	}
}
