package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/auditview/auditview/pkg/defaults"
)

// Version information - these can be overridden at build time via ldflags:
// go build -ldflags "-X github.com/auditview/auditview/pkg/ui.Commit=abc123"
var (
	Version   = defaults.Version
	BuildDate = "unknown"
	Commit    = "dev"
)

// UserAgent returns the User-Agent sent by webhook hooks and the printer.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", defaults.ToolName, Version)
}

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses console summaries)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// PrintBanner writes the one-line tool banner used by `version` and `serve`.
func PrintBanner(w io.Writer) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(w, "%s %s %s\n",
		TitleStyle.Render(defaults.ToolName),
		VersionStyle.Render("v"+Version),
		SubtitleStyle.Render("npm audit reports"))
}

// PrintVersion writes version, commit and build date.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "%s %s (commit %s, built %s)\n", defaults.ToolName, Version, Commit, BuildDate)
}
