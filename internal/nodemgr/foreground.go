package nodemgr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/lumenyx/lumenyxctl/internal/config"
	"github.com/lumenyx/lumenyxctl/internal/state"
)

// Graceful termination parameters: SIGTERM, bounded wait, then SIGKILL with
// a final verification that the process is actually gone.
const (
	termGracePeriod = 10 * time.Second
	killGracePeriod = 3 * time.Second
	alivePollEvery  = 200 * time.Millisecond
)

// nodeProcessName is the comm name used to verify pid-file entries against
// PID reuse, and as the fallback match when the recorded pid is stale.
const nodeProcessName = "lumenyx-node"

// ForegroundManager runs the node as a detached background child of the
// supervisor, recording its pid for later control. Stdout and stderr go to
// the node log file, which is also the watchdog's log window in this mode.
type ForegroundManager struct {
	cfg       *config.Config
	paths     *config.Paths
	store     *state.Store
	bootnodes *BootnodeCache
	logf      func(format string, args ...interface{})
}

// NewForegroundManager creates a foreground manager. logf may be nil.
func NewForegroundManager(cfg *config.Config, paths *config.Paths, store *state.Store, bootnodes *BootnodeCache, logf func(string, ...interface{})) *ForegroundManager {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &ForegroundManager{cfg: cfg, paths: paths, store: store, bootnodes: bootnodes, logf: logf}
}

// Mode returns Foreground.
func (m *ForegroundManager) Mode() DeployMode { return Foreground }

// Start launches the node as a detached process. A liveness check runs
// immediately before every start: exactly one node process may be active,
// and starting twice is a warning no-op, never a second process.
func (m *ForegroundManager) Start(ctx context.Context) error {
	if m.Alive() {
		m.logf("Warning: node already running, not starting a second process")
		return nil
	}

	snap, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	args := BuildArgs(m.cfg, snap, m.paths, m.bootnodes.Bootnodes(ctx))

	logFile, err := os.OpenFile(m.paths.NodeLogFile(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening node log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(m.paths.NodeBinary(), args...)
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// New session: the node survives the supervisor's terminal and is never
	// signaled through the supervisor's process group.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}

	pid := cmd.Process.Pid
	if err := os.WriteFile(m.paths.PidFile(), []byte(strconv.Itoa(pid)), 0644); err != nil {
		// The process is up but untracked; kill it rather than leak it.
		_ = cmd.Process.Kill()
		return fmt.Errorf("writing pid file: %w", err)
	}
	_ = cmd.Process.Release()

	m.logf("Node started (PID %d, validator=%v, pool=%v)", pid, snap.SyncCompleted, snap.PoolMode)
	return nil
}

// Stop terminates the node: SIGTERM, bounded wait, SIGKILL escalation, then
// re-verification. Stopping a stopped node is a silent no-op; a process that
// survives the full sequence is a hard error.
func (m *ForegroundManager) Stop(ctx context.Context) error {
	pid, ok := m.trackedPid()
	if !ok {
		// Fall back to a name match in case the pid file was lost.
		pid, ok = findByName(nodeProcessName)
		if !ok {
			return nil
		}
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		// Already gone between the check and the signal.
		_ = os.Remove(m.paths.PidFile())
		return nil
	}

	if waitGone(ctx, pid, termGracePeriod) {
		_ = os.Remove(m.paths.PidFile())
		return nil
	}

	m.logf("Node did not exit on SIGTERM, escalating to SIGKILL (PID %d)", pid)
	_ = process.Signal(syscall.SIGKILL)

	if waitGone(ctx, pid, killGracePeriod) {
		_ = os.Remove(m.paths.PidFile())
		return nil
	}

	return fmt.Errorf("%w: PID %d still alive after SIGKILL", ErrStopFailed, pid)
}

// Alive reports whether the node process is running: the recorded pid if it
// is still the node binary, falling back to a process-name match when the
// pid file is stale or missing.
func (m *ForegroundManager) Alive() bool {
	if pid, ok := m.trackedPid(); ok {
		return pidAlive(pid)
	}
	_, ok := findByName(nodeProcessName)
	return ok
}

// trackedPid reads the pid file and verifies the process identity. A stale
// entry (dead pid, or pid reused by another program) removes the file and
// reports not tracked.
func (m *ForegroundManager) trackedPid() (int, bool) {
	data, err := os.ReadFile(m.paths.PidFile())
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		_ = os.Remove(m.paths.PidFile())
		return 0, false
	}

	if !pidAlive(pid) {
		_ = os.Remove(m.paths.PidFile())
		return 0, false
	}

	return pid, true
}

// pidAlive checks liveness with signal 0 and guards against PID reuse by
// comparing the process comm name.
func pidAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false
	}
	return isNodeProcess(pid)
}

// isNodeProcess checks the command name for a PID using ps, which works on
// both Linux and macOS.
func isNodeProcess(pid int) bool {
	cmd := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "comm=")
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.Contains(strings.TrimSpace(string(output)), nodeProcessName)
}

// findByName locates a running node process by name when the pid file is
// stale. Returns the first matching pid.
func findByName(name string) (int, bool) {
	cmd := exec.Command("pgrep", "-x", name)
	output, err := cmd.Output()
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if pid, err := strconv.Atoi(line); err == nil && pid > 0 {
			return pid, true
		}
	}
	return 0, false
}

// waitGone polls until the pid disappears or the deadline passes.
func waitGone(ctx context.Context, pid int, within time.Duration) bool {
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		process, err := os.FindProcess(pid)
		if err != nil {
			return true
		}
		if err := process.Signal(syscall.Signal(0)); err != nil {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(alivePollEvery):
		}
	}
	return false
}
