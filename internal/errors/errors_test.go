package errors

import (
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
)

func TestNetworkError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  NetworkError
		want string
	}{
		{
			name: "retryable",
			err:  NetworkError{Op: "dial", Addr: "example.com:80", Err: io.EOF, Retryable: true},
			want: "dial example.com:80: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  NetworkError{Op: "accept", Addr: "127.0.0.1:8080", Err: fmt.Errorf("too many open files")},
			want: "accept 127.0.0.1:8080: too many open files",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := &NetworkError{Op: "dial", Addr: "x", Err: io.EOF}
	if !errors.Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "bastion.example.com", 22, fmt.Errorf("connection refused"))
	want := "ssh handshake bastion.example.com:22: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSSHError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("auth fail")
	err := WrapSSH("auth", "host", 22, inner)
	if !errors.Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "tasks",
				Value:   0,
				Message: "must be at least 1",
				Hint:    "pass --tasks 10 to spawn ten units",
			},
			want: "config: --tasks=0: must be at least 1\n  hint: pass --tasks 10 to spawn ten units",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "remote-port",
				Message: "required with --tunnel",
			},
			want: "config: --remote-port: required with --tunnel",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestTaskError(t *testing.T) {
	err := &TaskError{Index: 3, Err: ErrTaskPanic}
	if got, want := err.Error(), "task 3: task panicked"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !errors.Is(err, ErrTaskPanic) {
		t.Error("should unwrap to ErrTaskPanic")
	}
	var te *TaskError
	if !errors.As(Join(fmt.Errorf("other"), err), &te) || te.Index != 3 {
		t.Error("As should find the TaskError inside a joined error")
	}
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := Wrap("listen", "127.0.0.1:8080", inner)

	if err.Op != "listen" || err.Addr != "127.0.0.1:8080" {
		t.Errorf("wrong fields: Op=%q Addr=%q", err.Op, err.Addr)
	}
	if !errors.Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: true}, true},
		{"non-retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: false}, false},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")}, true},
		{"dns not found", &net.OpError{Op: "dial", Net: "tcp", Err: &net.DNSError{Name: "gw.invalid", IsNotFound: true}}, false},
		{"dns temporary", &net.DNSError{Name: "gw", IsTemporary: true}, true},
		{"dns timeout", &net.DNSError{Name: "gw", IsTimeout: true}, true},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyRetryable(tt.err); got != tt.want {
				t.Errorf("classifyRetryable() = %v, want %v", got, tt.want)
			}
			if got := Wrap("dial", "gw:22", tt.err).Retryable; got != tt.want {
				t.Errorf("Wrap().Retryable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	// Verify sentinel errors are distinct.
	sentinels := []error{
		ErrMalformedLine, ErrIdleTimeout, ErrNotConnected,
		ErrTaskPanic, ErrAuthFailed, ErrHostKeyMismatch,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
