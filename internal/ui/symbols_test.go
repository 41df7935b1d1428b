package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rileyhilliard/gpumon/internal/gpu"
)

func TestHealthGlyph(t *testing.T) {
	tests := []struct {
		health gpu.HostHealth
		want   string
	}{
		{gpu.HealthOK, SymbolOnline},
		{gpu.HealthWarning, SymbolWarning},
		{gpu.HealthCritical, SymbolWarning},
		{gpu.HealthError, SymbolFail},
		{gpu.HealthEmpty, SymbolEmpty},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HealthGlyph(tt.health))
	}
}
