package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the LINEECHO_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("LINEECHO_ADDR"); v != "" {
		cfg.Address = v
	}
	if v := envInt("LINEECHO_MAX_CONNS"); v > 0 {
		cfg.MaxConns = v
	}
	if v := envInt("LINEECHO_IDLE_TIMEOUT"); v > 0 {
		cfg.IdleTimeout = secondsDuration(v)
	}

	// Bulk join
	if envBool("LINEECHO_JOIN") {
		cfg.Join = true
	}
	if v := envInt("LINEECHO_TASKS"); v > 0 {
		cfg.Tasks = v
	}
	if v := envDuration("LINEECHO_TASK_STEP"); v > 0 {
		cfg.TaskStep = v
	}
	if v := envInt("LINEECHO_JOIN_WORKERS"); v > 0 {
		cfg.JoinWorkers = v
	}

	// SSH publishing
	if v := os.Getenv("LINEECHO_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := envInt("LINEECHO_REMOTE_PORT"); v > 0 {
		cfg.RemotePort = v
	}
	if v := os.Getenv("LINEECHO_REMOTE_BIND_ADDRESS"); v != "" {
		cfg.RemoteBindAddress = v
	}
	if v := os.Getenv("LINEECHO_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("LINEECHO_SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("LINEECHO_SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("LINEECHO_STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := os.Getenv("LINEECHO_KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v := envInt("LINEECHO_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if envBool("LINEECHO_QUIET") {
		cfg.Quiet = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

// envDuration accepts Go duration syntax ("250ms", "1s").
func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
