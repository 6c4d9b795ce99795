package capability

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"lineecho/internal/metrics"
	"lineecho/internal/session"
	"lineecho/util"
)

// startEcho runs Echo on one end of a pipe and returns the peer end
// plus a channel carrying Handle's result.
func startEcho(t *testing.T, ctx context.Context, m *metrics.Collector) (net.Conn, <-chan error) {
	t.Helper()
	server, client := net.Pipe()
	sess := session.New(server, util.NewLogger(0), m)

	done := make(chan error, 1)
	go func() {
		defer sess.Release()
		defer sess.Close()
		done <- (&Echo{}).Handle(ctx, sess)
	}()
	t.Cleanup(func() { client.Close() })
	return client, done
}

func waitResult(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Handle did not return")
		return nil
	}
}

// TestEcho_Lines verifies each line comes back unchanged and in order.
func TestEcho_Lines(t *testing.T) {
	m := metrics.New()
	client, done := startEcho(t, context.Background(), m)
	r := bufio.NewReader(client)

	for _, line := range []string{"hello from client 1\n", "\n", "  spaced  \n", "ünïcödé ✓\n"} {
		if _, err := client.Write([]byte(line)); err != nil {
			t.Fatalf("write %q: %v", line, err)
		}
		got, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != line {
			t.Errorf("echo = %q, want %q", got, line)
		}
	}

	client.Close()
	if err := waitResult(t, done); err != nil {
		t.Errorf("orderly close should end the session cleanly, got %v", err)
	}
	if m.LinesEchoed() != 4 {
		t.Errorf("lines echoed = %d, want 4", m.LinesEchoed())
	}
}

// TestEcho_MalformedKeepsSession verifies invalid UTF-8 yields the
// diagnostic and the session keeps echoing.
func TestEcho_MalformedKeepsSession(t *testing.T) {
	m := metrics.New()
	client, done := startEcho(t, context.Background(), m)
	r := bufio.NewReader(client)

	client.Write([]byte{0xff, 0xfe, 0xfd, '\n'}) //nolint:errcheck
	got, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != Diagnostic {
		t.Errorf("got %q, want diagnostic %q", got, Diagnostic)
	}

	client.Write([]byte("still here\n")) //nolint:errcheck
	got, err = r.ReadString('\n')
	if err != nil {
		t.Fatalf("read after diagnostic: %v", err)
	}
	if got != "still here\n" {
		t.Errorf("got %q, want %q", got, "still here\n")
	}

	client.Close()
	if err := waitResult(t, done); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if m.LinesMalformed() != 1 || m.LinesEchoed() != 1 {
		t.Errorf("malformed=%d echoed=%d, want 1 and 1", m.LinesMalformed(), m.LinesEchoed())
	}
}

// TestEcho_PartialLineBeforeClose verifies an unterminated final line
// is echoed before the session closes.  It needs a real TCP half-close,
// which a pipe cannot express.
func TestEcho_PartialLineBeforeClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		sess := session.New(conn, util.NewLogger(0), nil)
		defer sess.Release()
		defer sess.Close()
		done <- (&Echo{}).Handle(context.Background(), sess)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.Write([]byte("tail"))                            //nolint:errcheck
	conn.(*net.TCPConn).CloseWrite()                      //nolint:errcheck
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck

	got, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "tail" {
		t.Errorf("got %q, want %q", got, "tail")
	}
	if err := waitResult(t, done); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestEcho_WriteFailureEndsSession verifies a failed write is fatal to
// the session and reported.
func TestEcho_WriteFailureEndsSession(t *testing.T) {
	client, done := startEcho(t, context.Background(), nil)

	if _, err := client.Write([]byte("never read back\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	client.Close()

	err := waitResult(t, done)
	if err == nil {
		t.Fatal("expected a write error")
	}
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("err = %v, want it to wrap io.ErrClosedPipe", err)
	}
}

// TestEcho_ContextCancel verifies shutdown releases a silent peer's
// session without reporting an error.
func TestEcho_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, done := startEcho(t, ctx, nil)

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := waitResult(t, done); err != nil {
		t.Errorf("cancelled session returned %v, want nil", err)
	}
}
