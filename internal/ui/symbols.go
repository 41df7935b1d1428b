package ui

import "github.com/rileyhilliard/gpumon/internal/gpu"

// Unicode symbols for status indicators.
const (
	SymbolSuccess = "✓"
	SymbolFail    = "✗"
	SymbolWarning = "▲"
	SymbolPending = "○"
	SymbolOnline  = "●"
	SymbolEmpty   = "◌"
)

// HealthGlyph returns the glyph for a host's summarized health.
func HealthGlyph(h gpu.HostHealth) string {
	switch h {
	case gpu.HealthOK:
		return SymbolOnline
	case gpu.HealthWarning, gpu.HealthCritical:
		return SymbolWarning
	case gpu.HealthError:
		return SymbolFail
	case gpu.HealthEmpty:
		return SymbolEmpty
	default:
		return SymbolPending
	}
}
