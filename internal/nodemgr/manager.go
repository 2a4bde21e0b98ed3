// Package nodemgr controls the lifecycle of the managed lumenyx-node
// process. The Manager interface is implemented twice, by a foreground
// manager owning a detached child process and by a systemd-backed manager
// driving the installed service unit, so the watchdog and the mode toggle
// are written once against the interface.
package nodemgr

import (
	"context"
	"errors"
)

// DeployMode selects how the node process is run and controlled.
type DeployMode int

const (
	// Foreground runs the node as a detached child of the supervisor,
	// tracked by pid file.
	Foreground DeployMode = iota

	// Daemon runs the node as an installed systemd unit.
	Daemon
)

func (m DeployMode) String() string {
	switch m {
	case Foreground:
		return "foreground"
	case Daemon:
		return "daemon"
	default:
		return "unknown"
	}
}

// ErrStopFailed reports a process that survived the graceful-then-forceful
// termination sequence. Callers must not assume the node is gone.
var ErrStopFailed = errors.New("node process did not terminate")

// Manager starts, stops, and observes the single managed node process.
//
// Start while already running is an idempotent no-op (with a warning);
// Stop while stopped is a silent no-op. Failures to change state are always
// reported so callers can decide whether to retry.
type Manager interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Alive() bool
	Mode() DeployMode
}

// Restart is the stop-then-start cycle used by the watchdog and the mode
// toggle fallback. It is a helper over the interface so both managers share
// the exact sequence.
func Restart(ctx context.Context, m Manager) error {
	if err := m.Stop(ctx); err != nil {
		return err
	}
	return m.Start(ctx)
}
