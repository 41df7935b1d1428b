package monitor

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/gpumon/internal/gpu"
	"github.com/rileyhilliard/gpumon/internal/ui"
)

// Dashboard color palette
const (
	ColorSurfaceBg = lipgloss.Color("#12121A")

	ColorHealthy  = lipgloss.Color("#76B900")
	ColorWarning  = lipgloss.Color("#FFAA00")
	ColorCritical = lipgloss.Color("#FF3355")

	ColorTextPrimary   = lipgloss.Color("#FFFFFF")
	ColorTextSecondary = lipgloss.Color("#B4B4C8")
	ColorTextMuted     = lipgloss.Color("#6B6B80")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Background(ColorSurfaceBg).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ui.ColorAccent).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary).
			Bold(true).
			MarginTop(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	HostStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true)

	GPUNameStyle = lipgloss.NewStyle().
			Foreground(ui.ColorInfo)

	HealthyStyle  = lipgloss.NewStyle().Foreground(ColorHealthy)
	WarningStyle  = lipgloss.NewStyle().Foreground(ColorWarning)
	CriticalStyle = lipgloss.NewStyle().Foreground(ColorCritical).Bold(true)

	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	headerCell  = cellStyle.Foreground(ColorTextSecondary).Bold(true)
	borderStyle = lipgloss.NewStyle().Foreground(ui.ColorBorder)
)

// HealthStyle returns the style for a host's summarized health.
func HealthStyle(h gpu.HostHealth) lipgloss.Style {
	switch h {
	case gpu.HealthOK:
		return HealthyStyle
	case gpu.HealthWarning:
		return WarningStyle
	case gpu.HealthCritical, gpu.HealthError:
		return CriticalStyle
	default:
		return MutedStyle
	}
}

// ReasonStyle returns the style for a problem-list entry.
func ReasonStyle(r gpu.Reason) lipgloss.Style {
	if r == gpu.ReasonWarning {
		return WarningStyle
	}
	return CriticalStyle
}

// LevelStyle colors a reading against a warn/crit pair.
// Absent readings are muted.
func LevelStyle(r gpu.Reading, warn, crit float64) lipgloss.Style {
	switch {
	case !r.Valid:
		return MutedStyle
	case r.Value >= crit:
		return CriticalStyle
	case r.Value >= warn:
		return WarningStyle
	default:
		return lipgloss.NewStyle()
	}
}
