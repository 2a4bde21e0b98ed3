package sysd

import (
	"fmt"
	"os/exec"
	"strings"
)

// Unit names installed by the daemon deployment mode. These are part of the
// external interface: other tooling addresses the node by these names.
const (
	NodeUnit          = "lumenyx-node.service"
	WatchdogUnit      = "lumenyx-watchdog.service"
	WatchdogTimerUnit = "lumenyx-watchdog.timer"
)

// Systemctl wraps the systemctl CLI. User is true for a per-user systemd
// instance (systemctl --user), false for the system instance.
type Systemctl struct {
	User bool
}

func (s *Systemctl) run(args ...string) (string, error) {
	if s.User {
		args = append([]string{"--user"}, args...)
	}
	cmd := exec.Command("systemctl", args...)
	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))
	if err != nil {
		if text != "" {
			return text, fmt.Errorf("systemctl %s: %v (%s)", strings.Join(args, " "), err, text)
		}
		return text, fmt.Errorf("systemctl %s: %w", strings.Join(args, " "), err)
	}
	return text, nil
}

// Start asks the service manager to start a unit.
func (s *Systemctl) Start(unit string) error {
	_, err := s.run("start", unit)
	return err
}

// Stop asks the service manager to stop a unit.
func (s *Systemctl) Stop(unit string) error {
	_, err := s.run("stop", unit)
	return err
}

// Restart asks the service manager to restart a unit.
func (s *Systemctl) Restart(unit string) error {
	_, err := s.run("restart", unit)
	return err
}

// IsActive reports whether a unit is in the active state.
// systemctl is-active exits nonzero for inactive units; that is a state
// answer, not a failure.
func (s *Systemctl) IsActive(unit string) bool {
	output, err := s.run("is-active", unit)
	if err != nil {
		return false
	}
	return output == "active"
}

// Enable enables a unit, optionally starting it at the same time.
func (s *Systemctl) Enable(unit string, now bool) error {
	args := []string{"enable"}
	if now {
		args = append(args, "--now")
	}
	_, err := s.run(append(args, unit)...)
	return err
}

// Disable disables a unit, optionally stopping it at the same time.
func (s *Systemctl) Disable(unit string, now bool) error {
	args := []string{"disable"}
	if now {
		args = append(args, "--now")
	}
	_, err := s.run(append(args, unit)...)
	return err
}

// DaemonReload reloads unit definitions after install or removal.
func (s *Systemctl) DaemonReload() error {
	_, err := s.run("daemon-reload")
	return err
}
