package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
)

// Paths is the resolved filesystem layout for one installation. All paths are
// absolute; systemd unit files never contain home-directory shortcuts.
type Paths struct {
	// Home is the operating user's real home directory.
	Home string

	// SupervisorDir holds everything lumenyxctl owns: config, state, locks,
	// logs, the pid file, and the installed node binary.
	SupervisorDir string

	// DataDir is the node's chain data root (the node's own layout).
	DataDir string
}

// ResolvePaths resolves the operating identity and its real home directory
// without trusting an inherited $HOME. Under sudo the environment keeps the
// invoking root's values, so the target user is looked up through the system
// user database instead.
func ResolvePaths() (*Paths, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}
	return PathsForHome(home), nil
}

// PathsForHome builds the layout rooted at an explicit home directory.
// Used by tests and by daemon installation for a target user.
func PathsForHome(home string) *Paths {
	return &Paths{
		Home:          home,
		SupervisorDir: filepath.Join(home, ".lumenyx"),
		DataDir:       filepath.Join(home, ".local", "share", "lumenyx-node"),
	}
}

func resolveHome() (string, error) {
	// Invoked under sudo: resolve the invoking user, not root.
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" && sudoUser != "root" {
		u, err := user.Lookup(sudoUser)
		if err != nil {
			return "", fmt.Errorf("looking up sudo user %q: %w", sudoUser, err)
		}
		return u.HomeDir, nil
	}

	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("resolving current user: %w", err)
	}
	if u.HomeDir == "" {
		return "", fmt.Errorf("user %s has no home directory", u.Username)
	}
	return u.HomeDir, nil
}

// Supervisor-owned files.

func (p *Paths) ConfigFile() string       { return filepath.Join(p.SupervisorDir, "config.toml") }
func (p *Paths) StateFile() string        { return filepath.Join(p.SupervisorDir, "supervisor_state.json") }
func (p *Paths) StateLockFile() string    { return filepath.Join(p.SupervisorDir, "supervisor_state.lock") }
func (p *Paths) WatchdogLockFile() string { return filepath.Join(p.SupervisorDir, "watchdog.lock") }
func (p *Paths) SupervisorLogFile() string {
	return filepath.Join(p.SupervisorDir, "supervisor.log")
}
func (p *Paths) PidFile() string        { return filepath.Join(p.SupervisorDir, "node.pid") }
func (p *Paths) NodeLogFile() string    { return filepath.Join(p.SupervisorDir, "node.log") }
func (p *Paths) BootnodesCache() string { return filepath.Join(p.SupervisorDir, "bootnodes.txt") }
func (p *Paths) NodeBinary() string {
	return filepath.Join(p.SupervisorDir, "bin", "lumenyx-node")
}

// Wallet/identity material produced by external tooling; the daemon
// installer's guard rails check these before touching systemd.

func (p *Paths) AddressFile() string { return filepath.Join(p.SupervisorDir, "address.txt") }
func (p *Paths) KeyFile() string     { return filepath.Join(p.DataDir, "keys", "aura") }

// Node-owned files the supervisor also honors.

// PoolModeConf is the node's own persisted pool-mode flag. The node reads it
// at boot and rewrites it on a live lumenyx_setPoolMode call; the supervisor
// mirrors toggles into it so both views stay consistent.
func (p *Paths) PoolModeConf() string {
	return filepath.Join(p.DataDir, "pool_mode.conf")
}
