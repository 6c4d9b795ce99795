package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultAddress is the bind address when none is given.
	DefaultAddress = "127.0.0.1:8080"

	// DefaultTasks is the number of units spawned by the join demo.
	DefaultTasks = 10

	// DefaultTaskStep is the delay quantum of the join demo: unit i
	// sleeps (tasks-i) steps.
	DefaultTaskStep = 100 * time.Millisecond

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnTimeout is the SSH gateway connection timeout.
	DefaultConnTimeout = 30 * time.Second

	// DefaultGatewayAttempts is how many times to dial the SSH gateway
	// before giving up.
	DefaultGatewayAttempts = 5

	// DefaultShutdownGrace is how long a shutting-down server waits for
	// its sessions to release their connections.
	DefaultShutdownGrace = 5 * time.Second
)
