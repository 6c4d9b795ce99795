// Package config defines the runtime configuration for lineecho and
// provides helpers for parsing bind addresses and tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	ncerr "lineecho/internal/errors"
	"lineecho/util"
)

// Config holds every tuneable for a single lineecho process.
type Config struct {
	// ── Echo server ──────────────────────────────────────────────────
	Address     string        // bind address, first positional argument
	MaxConns    int           // 0 = unlimited concurrent sessions
	IdleTimeout time.Duration // 0 = a silent peer holds its session forever

	// ── Bulk task join ───────────────────────────────────────────────
	Join        bool
	Tasks       int
	TaskStep    time.Duration // unit i sleeps (Tasks-i)*TaskStep
	JoinWorkers int           // 0 = one goroutine per unit

	// ── SSH publishing ───────────────────────────────────────────────
	TunnelSpec        string // raw user@host[:port] from -T
	TunnelEnabled     bool
	TunnelUser        string
	TunnelHost        string
	TunnelPort        int
	SSHKeyPath        string
	SSHPassword       bool // true → prompt interactively
	UseSSHAgent       bool
	StrictHostKey     bool
	KnownHostsPath    string
	RemoteBindAddress string
	RemotePort        int

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	Quiet   bool
	DryRun  bool
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Address:  DefaultAddress,
		Tasks:    DefaultTasks,
		TaskStep: DefaultTaskStep,
	}
}

// LogLevel maps Verbose/Quiet onto a util.Logger verbosity.  Peer
// connect/disconnect lines are printed by default.
func (c *Config) LogLevel() int {
	if c.Quiet {
		return int(util.LogQuiet)
	}
	return int(util.LogNormal) + c.Verbose
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("tunnel host is required")
	}
	return user, host, port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Join {
		if c.Tasks < 1 {
			return &ncerr.ConfigError{
				Field:   "tasks",
				Value:   c.Tasks,
				Message: "must be at least 1",
				Hint:    "pass --tasks 10 to spawn ten units",
			}
		}
		if c.TaskStep < 0 {
			return &ncerr.ConfigError{
				Field:   "task-step",
				Value:   c.TaskStep,
				Message: "must not be negative",
			}
		}
		if c.JoinWorkers < 0 {
			return &ncerr.ConfigError{
				Field:   "join-workers",
				Value:   c.JoinWorkers,
				Message: "must not be negative",
				Hint:    "use 0 to run every unit at once",
			}
		}
		if c.TunnelEnabled {
			return fmt.Errorf("--join and --tunnel are mutually exclusive")
		}
		return nil
	}

	if _, _, err := util.SplitAddr(c.Address); err != nil {
		return &ncerr.ConfigError{
			Field:   "addr",
			Value:   c.Address,
			Message: err.Error(),
			Hint:    "pass host:port, e.g. " + DefaultAddress,
		}
	}

	if c.MaxConns < 0 {
		return &ncerr.ConfigError{
			Field:   "max-conns",
			Value:   c.MaxConns,
			Message: "must not be negative",
			Hint:    "use 0 for no limit",
		}
	}
	if c.IdleTimeout < 0 {
		return &ncerr.ConfigError{
			Field:   "idle-timeout",
			Value:   c.IdleTimeout,
			Message: "must not be negative",
		}
	}

	if c.TunnelEnabled {
		if c.TunnelHost == "" {
			return fmt.Errorf("tunnel host is required")
		}
		if c.RemotePort < 0 || c.RemotePort > 65535 {
			return &ncerr.ConfigError{
				Field:   "remote-port",
				Value:   c.RemotePort,
				Message: "out of range 0-65535",
				Hint:    "use 0 to let the gateway pick a port",
			}
		}
	}

	return nil
}
