package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/gpumon/internal/gpu"
)

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	if m.ready {
		b.WriteString(m.viewport.View())
	} else {
		b.WriteString(m.body())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the title bar with fleet counts and freshness.
func (m Model) renderHeader() string {
	title := TitleStyle.Render("gpumon")

	var stats string
	if !m.hasSnapshot {
		stats = fmt.Sprintf(" | %s | %d hosts | polling every %s", m.title, m.hosts, m.interval)
	} else {
		stats = " | " + m.title + " | " + snapshotStats(m.snapshot) + " | updated " + agoText(m.SecondsSinceUpdate())
	}

	return HeaderStyle.Render(title + LabelStyle.Render(stats))
}

// renderFooter renders the keyboard hint line.
func (m Model) renderFooter() string {
	detail := "a all GPUs"
	if m.showAll {
		detail = "a hide GPUs"
	}
	hints := []string{"q quit", detail, "↑↓ scroll", "? help"}

	return FooterStyle.Render(strings.Join(hints, " | "))
}

// snapshotStats summarizes a snapshot in one line, e.g.
// "3/4 hosts online | 24 GPUs | 2 problems | cycle 7".
func snapshotStats(snap gpu.ClusterSnapshot) string {
	hosts, online, gpus := snap.Counts()
	parts := []string{
		fmt.Sprintf("%d/%d hosts online", online, hosts),
		fmt.Sprintf("%d GPUs", gpus),
	}
	if n := len(snap.ProblemGPUs); n > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(ColorWarning).Render(pluralize(n, "problem")))
	}
	parts = append(parts, fmt.Sprintf("cycle %d", snap.Cycle))
	return strings.Join(parts, " | ")
}

func agoText(secs int) string {
	switch {
	case secs <= 0:
		return "just now"
	case secs == 1:
		return "1s ago"
	default:
		return fmt.Sprintf("%ds ago", secs)
	}
}

func waitingText(hosts int) string {
	return fmt.Sprintf("Polling %s...", pluralize(hosts, "host"))
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
