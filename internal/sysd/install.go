// Package sysd is the daemon deployment mode: it renders and installs the
// node's systemd service, the companion watchdog timer, and the optional
// desktop autostart entry, and drives systemctl.
package sysd

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/lumenyx/lumenyxctl/internal/config"
	"github.com/lumenyx/lumenyxctl/internal/util"
)

// systemUnitDir is where system-instance unit files are installed.
const systemUnitDir = "/etc/systemd/system"

// ErrGuardRail aborts installation before the service manager is touched.
// A misconfigured unit under Restart=always would spin forever; refusing up
// front with an explicit reason is the only safe failure mode.
var ErrGuardRail = errors.New("daemon installation refused")

// Installer installs and removes the daemon deployment.
type Installer struct {
	paths   *config.Paths
	sc      *Systemctl
	unitDir string
	user    string
	logf    func(format string, args ...interface{})

	// WatchdogBootGrace and WatchdogInterval schedule the companion timer.
	// Callers set them from the watchdog's tuning constants.
	WatchdogBootGrace time.Duration
	WatchdogInterval  time.Duration
}

// NewInstaller resolves the operating identity for the daemon units. Like
// config.ResolvePaths, it goes through the system user database rather than
// trusting an inherited environment.
func NewInstaller(paths *config.Paths, sc *Systemctl, logf func(string, ...interface{})) (*Installer, error) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}

	username := os.Getenv("SUDO_USER")
	if username == "" || username == "root" {
		u, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("resolving current user: %w", err)
		}
		username = u.Username
	}

	return &Installer{
		paths:             paths,
		sc:                sc,
		unitDir:           systemUnitDir,
		user:              username,
		logf:              logf,
		WatchdogBootGrace: 90 * time.Second,
		WatchdogInterval:  15 * time.Second,
	}, nil
}

// EnableDaemon installs and starts the node service, the watchdog timer,
// and, in a graphical session, the autostart entry.
func (i *Installer) EnableDaemon() error {
	if err := i.checkGuardRails(); err != nil {
		return err
	}

	ctlPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving lumenyxctl path: %w", err)
	}
	ctlPath, err = filepath.EvalSymlinks(ctlPath)
	if err != nil {
		return fmt.Errorf("resolving lumenyxctl path: %w", err)
	}

	nodeUnit := RenderNodeUnit(NodeUnitParams{
		CtlPath:       ctlPath,
		User:          i.user,
		SupervisorDir: i.paths.SupervisorDir,
	})
	wdParams := WatchdogUnitParams{
		CtlPath:       ctlPath,
		User:          i.user,
		SupervisorDir: i.paths.SupervisorDir,
		BootGrace:     i.WatchdogBootGrace,
		Interval:      i.WatchdogInterval,
	}

	units := map[string]string{
		NodeUnit:          nodeUnit,
		WatchdogUnit:      RenderWatchdogService(wdParams),
		WatchdogTimerUnit: RenderWatchdogTimer(wdParams),
	}
	for name, contents := range units {
		path := filepath.Join(i.unitDir, name)
		if err := util.WriteFileAtomic(path, []byte(contents), 0644); err != nil {
			return fmt.Errorf("installing %s: %w", name, err)
		}
		i.logf("Installed %s", path)
	}

	if err := i.sc.DaemonReload(); err != nil {
		return err
	}
	if err := i.sc.Enable(NodeUnit, true); err != nil {
		return err
	}
	if err := i.sc.Enable(WatchdogTimerUnit, true); err != nil {
		return err
	}

	// Desktop autostart only in an interactive graphical session; headless
	// server installs get no GUI artifacts.
	if GraphicalSessionDetected() {
		entry := RenderAutostartEntry(ctlPath)
		path := i.autostartPath()
		if err := util.WriteFileAtomic(path, []byte(entry), 0644); err != nil {
			i.logf("Warning: failed to install autostart entry: %v", err)
		} else {
			i.logf("Installed %s", path)
		}
	}

	return nil
}

// DisableDaemon stops and disables the units and removes the installed
// artifacts. Wallet and chain data are left untouched.
func (i *Installer) DisableDaemon() error {
	if err := i.sc.Disable(WatchdogTimerUnit, true); err != nil {
		i.logf("Warning: %v", err)
	}
	if err := i.sc.Disable(NodeUnit, true); err != nil {
		i.logf("Warning: %v", err)
	}

	for _, name := range []string{NodeUnit, WatchdogUnit, WatchdogTimerUnit} {
		path := filepath.Join(i.unitDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	if err := i.sc.DaemonReload(); err != nil {
		return err
	}

	if err := os.Remove(i.autostartPath()); err != nil && !os.IsNotExist(err) {
		i.logf("Warning: failed to remove autostart entry: %v", err)
	}

	return nil
}

// checkGuardRails refuses installation while any prerequisite is missing:
// the service manager must never be pointed at a process that cannot come up.
func (i *Installer) checkGuardRails() error {
	binInfo, err := os.Stat(i.paths.NodeBinary())
	if err != nil {
		return fmt.Errorf("%w: node binary missing at %s", ErrGuardRail, i.paths.NodeBinary())
	}
	if binInfo.Mode()&0111 == 0 {
		return fmt.Errorf("%w: node binary at %s is not executable", ErrGuardRail, i.paths.NodeBinary())
	}

	addrInfo, err := os.Stat(i.paths.AddressFile())
	if err != nil {
		return fmt.Errorf("%w: wallet address record missing at %s", ErrGuardRail, i.paths.AddressFile())
	}
	if addrInfo.Size() == 0 {
		return fmt.Errorf("%w: wallet address record at %s is empty", ErrGuardRail, i.paths.AddressFile())
	}

	if _, err := os.Stat(i.paths.KeyFile()); err != nil {
		return fmt.Errorf("%w: session key material missing at %s", ErrGuardRail, i.paths.KeyFile())
	}

	return nil
}

func (i *Installer) autostartPath() string {
	return filepath.Join(i.paths.Home, ".config", "autostart", "lumenyx-node.desktop")
}

// GraphicalSessionDetected reports whether an interactive graphical session
// is present.
func GraphicalSessionDetected() bool {
	if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" {
		return true
	}
	switch os.Getenv("XDG_SESSION_TYPE") {
	case "x11", "wayland":
		return true
	}
	return false
}
