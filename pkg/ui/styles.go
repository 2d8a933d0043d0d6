package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/auditview/auditview/pkg/finding"
)

// Color palette. Severity colors come from the report so the terminal
// matches the HTML charts.
var (
	// Brand colors
	Primary   = lipgloss.Color("#CB3837") // npm red
	Secondary = lipgloss.Color("#00D4AA")

	// Status colors
	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Error   = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")
)

// Pre-configured styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Width(22)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true)

	PassStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)
)

// SeverityColor returns the chart color for s, grey for unknown labels.
func SeverityColor(s finding.Severity) lipgloss.Color {
	return lipgloss.Color(s.Color())
}

// SeverityStyle returns a bold foreground style for a severity level.
func SeverityStyle(s finding.Severity) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	if !s.IsValid() {
		return base.Foreground(Muted)
	}
	return base.Foreground(SeverityColor(s))
}

// SeverityBadge renders the severity label on its color, like the HTML
// report's severity column.
func SeverityBadge(s finding.Severity) string {
	style := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	if !s.IsValid() {
		return style.Foreground(Muted).Render(s.Label())
	}
	fg := lipgloss.Color("#FFFFFF")
	if s == finding.Low {
		fg = lipgloss.Color("#000000")
	}
	return style.Foreground(fg).Background(SeverityColor(s)).Render(s.Label())
}
