package transport

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	ncerr "lineecho/internal/errors"
	"lineecho/tunnel"
	"lineecho/util"
)

// TestTCPListener_Ephemeral verifies port 0 binds and reports a real port.
func TestTCPListener_Ephemeral(t *testing.T) {
	l := &TCPListener{Address: "127.0.0.1:0"}
	ln, err := l.Listen(context.Background())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	if port := ln.Addr().(*net.TCPAddr).Port; port == 0 {
		t.Error("expected an ephemeral port to be assigned")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

// TestTCPListener_AddressInUse verifies bind failures are structured.
func TestTCPListener_AddressInUse(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer taken.Close()

	l := &TCPListener{Address: taken.Addr().String()}
	_, err = l.Listen(context.Background())
	if err == nil {
		t.Fatal("expected bind error")
	}
	var ne *ncerr.NetworkError
	if !errors.As(err, &ne) || ne.Op != "listen" {
		t.Errorf("err = %v, want a listen NetworkError", err)
	}
}

// TestTCPListener_MaxConns verifies the cap holds back the accept of a
// connection beyond the limit until an earlier one is closed.
func TestTCPListener_MaxConns(t *testing.T) {
	l := &TCPListener{Address: "127.0.0.1:0", MaxConns: 1}
	ln, err := l.Listen(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 2)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- c
		}
	}()

	c1, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c1.Close()
	first := <-accepted

	c2, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()

	select {
	case <-accepted:
		t.Fatal("second connection accepted while at the cap")
	case <-time.After(100 * time.Millisecond):
	}

	first.Close()
	select {
	case c := <-accepted:
		c.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("second connection not accepted after the first closed")
	}
}

func TestLimit_Disabled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	if limit(ln, 0) != ln {
		t.Error("limit(ln, 0) should return ln unchanged")
	}
}

// TestSSHListener_GatewayUnreachable verifies gateway failures surface
// from Listen and leave the listener unconnected.
func TestSSHListener_GatewayUnreachable(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("SSH_AUTH_SOCK", "")
	t.Setenv("HOME", t.TempDir())

	l := &SSHListener{
		Gateway: tunnel.NewSSHGateway(&tunnel.SSHConfig{
			User:        "u",
			Host:        "127.0.0.1",
			Port:        port,
			ConnTimeout: time.Second,
		}, nil, util.NewLogger(0)),
		RemotePort: 9000,
		Logger:     util.NewLogger(0),
	}

	_, err = l.Listen(context.Background())
	if err == nil {
		t.Fatal("expected gateway error")
	}
	if !strings.HasPrefix(err.Error(), "gateway:") {
		t.Errorf("err = %v, want gateway prefix", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

// TestSSHListener_ReconnectsDroppedGateway verifies a Listen after the
// gateway connection dropped dials again instead of using the dead client.
func TestSSHListener_ReconnectsDroppedGateway(t *testing.T) {
	port, err := util.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("SSH_AUTH_SOCK", "")
	t.Setenv("HOME", t.TempDir())

	l := &SSHListener{
		Gateway: tunnel.NewSSHGateway(&tunnel.SSHConfig{
			User:        "u",
			Host:        "127.0.0.1",
			Port:        port,
			ConnTimeout: time.Second,
		}, nil, util.NewLogger(0)),
		Logger: util.NewLogger(0),
	}
	// Connected once, since lost: the gateway reports not alive.
	l.connected = true

	_, err = l.Listen(context.Background())
	if errors.Is(err, ncerr.ErrNotConnected) {
		t.Fatal("Listen used the dropped gateway instead of reconnecting")
	}
	if err == nil || !strings.HasPrefix(err.Error(), "gateway:") {
		t.Fatalf("err = %v, want gateway reconnect error", err)
	}
	if l.connected {
		t.Error("listener should be unconnected after a failed reconnect")
	}
}
