package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorText    lipgloss.Color = "#cdd6f4"
	colorMuted   lipgloss.Color = "#a6adc8"
	colorBorder  lipgloss.Color = "#6c7086"
	colorAccent  lipgloss.Color = "#89b4fa"
	colorSuccess lipgloss.Color = "#a6e3a1"
	colorError   lipgloss.Color = "#f38ba8"
	colorWarn    lipgloss.Color = "#f9e2af"
)

var (
	headerStyle   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	titleStyle    = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	textStyle     = lipgloss.NewStyle().Foreground(colorText)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle    = lipgloss.NewStyle().Foreground(colorError)
	successStyle  = lipgloss.NewStyle().Foreground(colorSuccess)
	spinnerStyle  = lipgloss.NewStyle().Foreground(colorWarn)
	buttonStyle   = lipgloss.NewStyle().Foreground(colorText).Padding(0, 1)
	buttonFocused = lipgloss.NewStyle().Foreground(lipgloss.Color("#1e1e2e")).Background(colorAccent).Padding(0, 1)
	escapeStyle   = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
	escapeFocused = lipgloss.NewStyle().Foreground(lipgloss.Color("#1e1e2e")).Background(colorMuted).Padding(0, 1)
)
