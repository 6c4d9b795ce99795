// Package cmd wires up the CLI flags and dispatches to a lineecho mode.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"lineecho/config"
	"lineecho/internal/core"
	"lineecho/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X lineecho/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the selected mode until ctx is done.
func Execute(ctx context.Context, args []string) error {
	cfg, done, err := parseArgs(args)
	if err != nil || done {
		return err
	}

	if cfg.DryRun {
		fmt.Println("configuration OK")
		return nil
	}

	// ── build and run ────────────────────────────────────────────
	logger := util.NewLogger(cfg.LogLevel())

	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// parseArgs layers flags over LINEECHO_* variables over defaults and
// validates the result.  done is set when --help or --version was
// served and there is nothing left to run.
func parseArgs(args []string) (cfg *config.Config, done bool, err error) {
	cfg = config.Default()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("lineecho", flag.ContinueOnError)

	// ── echo server ──────────────────────────────────────────────
	fs.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "Cap concurrent sessions (0 = unlimited)")
	idleSec := int(cfg.IdleTimeout / time.Second)
	fs.IntVarP(&idleSec, "idle-timeout", "w", idleSec, "Close a session after this many idle seconds (0 = never)")

	// ── bulk task join ───────────────────────────────────────────
	fs.BoolVarP(&cfg.Join, "join", "j", cfg.Join, "Run the bulk task join instead of serving")
	fs.IntVarP(&cfg.Tasks, "tasks", "n", cfg.Tasks, "Number of units to spawn (with -j)")
	fs.DurationVar(&cfg.TaskStep, "task-step", cfg.TaskStep, "Unit i sleeps (tasks-i) * step")
	fs.IntVar(&cfg.JoinWorkers, "join-workers", cfg.JoinWorkers, "Run at most this many units at once (0 = all)")

	// ── SSH publishing ───────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Publish through SSH gateway [user@]host[:port]")
	fs.IntVar(&cfg.RemotePort, "remote-port", cfg.RemotePort, "Port the gateway listens on (with -T)")
	fs.StringVar(&cfg.RemoteBindAddress, "remote-bind-address", cfg.RemoteBindAddress, "Address the gateway binds (with -T)")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── output ───────────────────────────────────────────────────
	// CountVarP zeroes its target on registration.
	envVerbose := cfg.Verbose
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, "Only print errors")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Validate configuration and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	if showHelp {
		printUsage(fs)
		return nil, true, nil
	}
	if showVersion {
		fmt.Printf("lineecho %s\n", version)
		return nil, true, nil
	}

	if !fs.Changed("verbose") {
		cfg.Verbose = envVerbose
	}
	if fs.Changed("idle-timeout") {
		cfg.IdleTimeout = time.Duration(idleSec) * time.Second
	}

	// ── positional arguments ─────────────────────────────────────
	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		cfg.Address = rest[0]
	default:
		return nil, false, fmt.Errorf("too many arguments: expected at most one bind address, got %d", len(rest))
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return nil, false, fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `lineecho v%s

A concurrent line-echo server with a bulk task join demo.

Usage:
  lineecho [options] [addr]                   Serve (default %s)
  lineecho -j [-n tasks] [--task-step d]      Bulk task join
  lineecho -T user@gateway --remote-port N    Serve through an SSH gateway

Options:
`, version, config.DefaultAddress)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  lineecho                                    Echo lines on %s
  lineecho 0.0.0.0:7000 --max-conns 100       Public, capped at 100 sessions
  lineecho -j -n 10                           Join ten reverse-delayed units
  lineecho -T admin@bastion --remote-port 9000
`, config.DefaultAddress)
}
