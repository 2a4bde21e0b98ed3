package sysd

import (
	"strings"
	"testing"
	"time"
)

func TestRenderNodeUnit(t *testing.T) {
	unit := RenderNodeUnit(NodeUnitParams{
		CtlPath:       "/usr/local/bin/lumenyxctl",
		User:          "miner",
		SupervisorDir: "/home/miner/.lumenyx",
	})

	// ExecStart resolves flags through the exec wrapper so the descriptor
	// stays valid across mining and pool-mode changes.
	wants := []string{
		"ExecStart=/usr/local/bin/lumenyxctl node exec",
		"User=miner",
		"WorkingDirectory=/home/miner/.lumenyx",
		"Restart=always",
		"RestartSec=10",
		"After=network-online.target",
		"WantedBy=multi-user.target",
	}
	for _, want := range wants {
		if !strings.Contains(unit, want) {
			t.Errorf("node unit missing %q:\n%s", want, unit)
		}
	}

	if strings.Contains(unit, "~") {
		t.Error("unit descriptor must not contain home-directory shortcuts")
	}
}

func TestRenderWatchdogUnits(t *testing.T) {
	p := WatchdogUnitParams{
		CtlPath:       "/usr/local/bin/lumenyxctl",
		User:          "miner",
		SupervisorDir: "/home/miner/.lumenyx",
		BootGrace:     90 * time.Second,
		Interval:      15 * time.Second,
	}

	service := RenderWatchdogService(p)
	for _, want := range []string{
		"Type=oneshot",
		"ExecStart=/usr/local/bin/lumenyxctl watchdog run",
		"User=miner",
	} {
		if !strings.Contains(service, want) {
			t.Errorf("watchdog service missing %q:\n%s", want, service)
		}
	}

	timer := RenderWatchdogTimer(p)
	for _, want := range []string{
		"OnBootSec=90",
		"OnUnitActiveSec=15",
		"WantedBy=timers.target",
	} {
		if !strings.Contains(timer, want) {
			t.Errorf("watchdog timer missing %q:\n%s", want, timer)
		}
	}
}

func TestRenderAutostartEntry(t *testing.T) {
	entry := RenderAutostartEntry("/usr/local/bin/lumenyxctl")
	for _, want := range []string{
		"[Desktop Entry]",
		"Exec=/usr/local/bin/lumenyxctl node start",
		"Terminal=false",
	} {
		if !strings.Contains(entry, want) {
			t.Errorf("autostart entry missing %q:\n%s", want, entry)
		}
	}
}

func TestGraphicalSessionDetected(t *testing.T) {
	clear := func(t *testing.T) {
		t.Setenv("DISPLAY", "")
		t.Setenv("WAYLAND_DISPLAY", "")
		t.Setenv("XDG_SESSION_TYPE", "")
	}

	t.Run("headless", func(t *testing.T) {
		clear(t)
		if GraphicalSessionDetected() {
			t.Error("no session variables should mean headless")
		}
	})

	t.Run("x11 display", func(t *testing.T) {
		clear(t)
		t.Setenv("DISPLAY", ":0")
		if !GraphicalSessionDetected() {
			t.Error("DISPLAY should indicate a graphical session")
		}
	})

	t.Run("wayland", func(t *testing.T) {
		clear(t)
		t.Setenv("WAYLAND_DISPLAY", "wayland-0")
		if !GraphicalSessionDetected() {
			t.Error("WAYLAND_DISPLAY should indicate a graphical session")
		}
	})

	t.Run("session type", func(t *testing.T) {
		clear(t)
		t.Setenv("XDG_SESSION_TYPE", "wayland")
		if !GraphicalSessionDetected() {
			t.Error("XDG_SESSION_TYPE=wayland should indicate a graphical session")
		}
	})

	t.Run("tty session type", func(t *testing.T) {
		clear(t)
		t.Setenv("XDG_SESSION_TYPE", "tty")
		if GraphicalSessionDetected() {
			t.Error("XDG_SESSION_TYPE=tty is not graphical")
		}
	})
}
