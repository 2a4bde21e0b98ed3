package nodemgr

import (
	"context"
	"fmt"

	"github.com/lumenyx/lumenyxctl/internal/sysd"
)

// SystemdManager controls the node through its installed service unit.
// The unit's ExecStart goes through `lumenyxctl node exec`, which resolves
// the launch arguments from the state store at every (re)start, so the unit
// descriptor itself never needs regeneration when the mining or pool flags
// change.
type SystemdManager struct {
	sc   *sysd.Systemctl
	unit string
	logf func(format string, args ...interface{})
}

// NewSystemdManager creates a manager for the node's service unit.
// logf may be nil.
func NewSystemdManager(sc *sysd.Systemctl, logf func(string, ...interface{})) *SystemdManager {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &SystemdManager{sc: sc, unit: sysd.NodeUnit, logf: logf}
}

// Mode returns Daemon.
func (m *SystemdManager) Mode() DeployMode { return Daemon }

// Start asks the service manager to start the node unit.
// A warning no-op if the unit is already active.
func (m *SystemdManager) Start(ctx context.Context) error {
	if m.Alive() {
		m.logf("Warning: %s already active, not starting again", m.unit)
		return nil
	}
	if err := m.sc.Start(m.unit); err != nil {
		return fmt.Errorf("starting %s: %w", m.unit, err)
	}
	return nil
}

// Stop asks the service manager to stop the node unit.
// A silent no-op if the unit is already inactive.
func (m *SystemdManager) Stop(ctx context.Context) error {
	if !m.Alive() {
		return nil
	}
	if err := m.sc.Stop(m.unit); err != nil {
		return fmt.Errorf("stopping %s: %w", m.unit, err)
	}
	return nil
}

// Alive queries the unit's active state.
func (m *SystemdManager) Alive() bool {
	return m.sc.IsActive(m.unit)
}
