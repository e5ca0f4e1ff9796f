package tui

import "github.com/charmbracelet/lipgloss"

// Only the styles app.go's View actually renders with live here;
// per-pane styling (header/lag/logs/segments/throughput) belongs to
// internal/tui/components, which can't import this package back.
var (
	colorPrimary = lipgloss.Color("#7C3AED") // Purple, title bar.
	colorMuted   = lipgloss.Color("#6B7280") // Gray, help text.
	colorBorder  = lipgloss.Color("#374151") // Border gray, section boxes.

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)
