package util

import (
	"fmt"
	"io"
	"net"
	"os"
	"testing"
	"time"
)

func TestIsHarmless(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("read: %w", io.EOF), true},
		{"closed", net.ErrClosed, true},
		{"closed pipe", io.ErrClosedPipe, true},
		{"op closed", &net.OpError{Op: "read", Net: "tcp", Err: net.ErrClosed}, true},
		{"plain", fmt.Errorf("boom"), false},
		{"deadline", os.ErrDeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHarmless(tt.err); got != tt.want {
				t.Errorf("IsHarmless(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestIsTimeout verifies that an expired read deadline on a real
// connection is classified as a timeout.
func TestIsTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	a.SetReadDeadline(time.Now().Add(10 * time.Millisecond)) //nolint:errcheck
	_, err := a.Read(make([]byte, 1))
	if !IsTimeout(err) {
		t.Errorf("IsTimeout(%v) = false, want true", err)
	}
	if IsTimeout(io.EOF) {
		t.Error("io.EOF should not be a timeout")
	}
}
