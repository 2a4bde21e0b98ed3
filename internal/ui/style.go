// Package ui provides the styled operator-facing output used by the CLI
// commands: semantic status icons, muted hints, and small formatting helpers.
package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// RenderPassIcon returns the success indicator.
func RenderPassIcon() string {
	if !ShouldUseColor() {
		return "✓"
	}
	return passStyle.Render("✓")
}

// RenderWarnIcon returns the warning indicator.
func RenderWarnIcon() string {
	if !ShouldUseColor() {
		return "!"
	}
	return warnStyle.Render("!")
}

// RenderFailIcon returns the failure indicator.
func RenderFailIcon() string {
	if !ShouldUseColor() {
		return "✗"
	}
	return failStyle.Render("✗")
}

// RenderMuted renders secondary text (hints, paths, commands).
func RenderMuted(s string) string {
	if !ShouldUseColor() {
		return s
	}
	return mutedStyle.Render(s)
}

// ShortenPath replaces the home directory prefix with ~ for display.
func ShortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + strings.TrimPrefix(path, home)
	}
	return path
}

// RelativeTime formats a timestamp as a human-readable age ("3m ago").
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
