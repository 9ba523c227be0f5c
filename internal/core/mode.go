// Package core is the orchestration layer.  It composes servers,
// clients and sessions into complete operational modes and provides a
// builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  server / client  →  session  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of echonet (serve,
// connect, or smoke).  Each mode owns its full lifecycle from socket
// creation to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
