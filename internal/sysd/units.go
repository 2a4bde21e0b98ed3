package sysd

import (
	"fmt"
	"time"
)

// Unit descriptors are rendered with fully resolved absolute paths: systemd
// does not expand home-directory shortcuts, and the units must be valid no
// matter which environment the service manager starts them from.

// NodeUnitParams fills the main service descriptor.
type NodeUnitParams struct {
	// CtlPath is the absolute path to the lumenyxctl binary.
	CtlPath string

	// User is the operating user the node runs as.
	User string

	// SupervisorDir is the node's working directory.
	SupervisorDir string
}

// RestartDelay is the always-restart policy's delay between node exits.
const RestartDelay = 10 * time.Second

// RenderNodeUnit renders lumenyx-node.service. ExecStart goes through
// `lumenyxctl node exec`, which resolves the launch argument set from the
// state store at every (re)start, so the descriptor never changes when the
// mining or pool flags do.
func RenderNodeUnit(p NodeUnitParams) string {
	return fmt.Sprintf(`[Unit]
Description=Lumenyx blockchain node
After=network-online.target
Wants=network-online.target

[Service]
Type=exec
User=%s
WorkingDirectory=%s
ExecStart=%s node exec
Restart=always
RestartSec=%d
LimitNOFILE=65536

[Install]
WantedBy=multi-user.target
`, p.User, p.SupervisorDir, p.CtlPath, int(RestartDelay.Seconds()))
}

// WatchdogUnitParams fills the companion watchdog service and timer.
type WatchdogUnitParams struct {
	CtlPath       string
	User          string
	SupervisorDir string

	// BootGrace is the timer's initial delay after boot.
	BootGrace time.Duration

	// Interval is the tick interval between watchdog invocations.
	Interval time.Duration
}

// RenderWatchdogService renders lumenyx-watchdog.service, the short-lived
// per-tick check invoked by the timer.
func RenderWatchdogService(p WatchdogUnitParams) string {
	return fmt.Sprintf(`[Unit]
Description=Lumenyx node health watchdog tick

[Service]
Type=oneshot
User=%s
WorkingDirectory=%s
ExecStart=%s watchdog run
`, p.User, p.SupervisorDir, p.CtlPath)
}

// RenderWatchdogTimer renders lumenyx-watchdog.timer.
func RenderWatchdogTimer(p WatchdogUnitParams) string {
	return fmt.Sprintf(`[Unit]
Description=Periodic Lumenyx node health check

[Timer]
OnBootSec=%d
OnUnitActiveSec=%d
AccuracySec=1

[Install]
WantedBy=timers.target
`, int(p.BootGrace.Seconds()), int(p.Interval.Seconds()))
}

// RenderAutostartEntry renders the desktop-session autostart entry installed
// only when an interactive graphical session is detected.
func RenderAutostartEntry(ctlPath string) string {
	return fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=Lumenyx Node
Comment=Start the Lumenyx node supervisor at login
Exec=%s node start
Terminal=false
X-GNOME-Autostart-enabled=true
`, ctlPath)
}
