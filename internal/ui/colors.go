package ui

import "github.com/charmbracelet/lipgloss"

// Status colors. ANSI codes, so they follow the terminal theme.
const (
	ColorSuccess lipgloss.Color = "2" // healthy host, passing check
	ColorError   lipgloss.Color = "1" // unreachable host, critical GPU
	ColorWarning lipgloss.Color = "3" // GPU over a warning threshold
	ColorInfo    lipgloss.Color = "6" // GPU model names
	ColorMuted   lipgloss.Color = "8" // absent readings, secondary text
)

// Chrome colors for the dashboard title, help box and table borders.
const (
	ColorAccent lipgloss.Color = "#76B900"
	ColorBorder lipgloss.Color = "#3A3A4A"
)
