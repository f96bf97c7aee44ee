package report

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen  = lipgloss.Color("#00FF00")
	colorYellow = lipgloss.Color("#FFFF00")
	colorRed    = lipgloss.Color("#FF0000")
	colorCyan   = lipgloss.Color("#00FFFF")
	colorGray   = lipgloss.Color("#666666")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorCyan)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	goodStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	fairStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	poorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)
)
