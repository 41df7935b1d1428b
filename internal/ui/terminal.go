package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NoColorRequested reports whether NO_COLOR is set to anything.
func NoColorRequested() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

// ConfigureColor drops lipgloss to plain ASCII output when colors are
// disabled by flag or NO_COLOR. Otherwise the detected profile is kept.
func ConfigureColor(disable bool) {
	if disable || NoColorRequested() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// TerminalWidth returns the width of stdout, or fallback when unknown.
func TerminalWidth(fallback int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
