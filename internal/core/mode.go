// Package core is the orchestration layer.  It composes transports
// and capabilities into complete operational modes and provides a
// builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  session  →  capability  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of lineecho (serve or
// join).  Each mode owns its full lifecycle from setup to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
