package monitor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rileyhilliard/gpumon/internal/gpu"
	"github.com/rileyhilliard/gpumon/internal/ui"
)

// maxDetailLen caps error text inside table cells.
const maxDetailLen = 60

// ReportOptions controls what RenderReport includes.
type ReportOptions struct {
	Title   string
	Policy  gpu.Policy
	ShowAll bool
	Width   int // 0 lets the tables size to content
}

// RenderReport renders the summary table, the problem list and, when
// ShowAll is set, the per-GPU detail table.
func RenderReport(snap gpu.ClusterSnapshot, opts ReportOptions) string {
	title := opts.Title
	if title == "" {
		title = snap.ClusterName
	}

	sections := []string{
		TitleStyle.Render("Cluster Overview: " + title),
		SummaryTable(snap, opts.Policy, opts.Width),
		SectionStyle.Render(problemsHeading(snap)),
		ProblemTable(snap, opts.Width),
	}
	if opts.ShowAll {
		sections = append(sections,
			SectionStyle.Render("All GPUs"),
			DetailTable(snap, opts.Policy, opts.Width),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SummaryTable renders one row per host.
func SummaryTable(snap gpu.ClusterSnapshot, policy gpu.Policy, width int) string {
	if len(snap.Hosts) == 0 {
		return MutedStyle.Render("No hosts configured")
	}

	t := newTable(width,
		"Host", "GPUs (Busy/Total)", "Available IDs",
		"Avg Util %", "Avg Mem %", "Avg Temp °C", "Power W", "GPU Types",
	)

	for _, h := range snap.Hosts {
		s := gpu.Summarize(h, policy)
		host := HealthStyle(s.Health).Render(ui.HealthGlyph(s.Health)) + " " + HostStyle.Render(s.Host)

		switch s.Health {
		case gpu.HealthError:
			t.Row(host,
				CriticalStyle.Render("N/A"),
				CriticalStyle.Render(truncate(s.ErrorDetail, maxDetailLen)),
				"-", "-", "-", "-", "-",
			)
		case gpu.HealthEmpty:
			t.Row(host,
				MutedStyle.Render("0/0"),
				WarningStyle.Render("No GPU data"),
				"-", "-", "-", "-", "-",
			)
		default:
			t.Row(host,
				fmt.Sprintf("%d/%d", s.Busy, s.Total),
				gpu.FormatIDRanges(s.AvailableIDs),
				LevelStyle(s.AvgUtil, policy.WarnUtil, policy.CritUtil).Render(s.AvgUtil.Format(1)),
				formatReading(s.AvgMemPct, 1),
				LevelStyle(s.AvgTemp, policy.WarnTemp, policy.CritTemp).Render(s.AvgTemp.Format(1)),
				formatReading(s.TotalPower, 0),
				GPUNameStyle.Render(strings.Join(s.Names, ", ")),
			)
		}
	}

	return t.String()
}

// ProblemTable renders the snapshot's problem GPUs, or an all-clear line.
func ProblemTable(snap gpu.ClusterSnapshot, width int) string {
	if len(snap.ProblemGPUs) == 0 {
		return HealthyStyle.Render(ui.SymbolSuccess + " All clear: no GPUs over threshold")
	}

	t := newTable(width, "Host", "GPU", "Name", "Util %", "Temp °C", "Issue")

	for _, p := range snap.ProblemGPUs {
		style := ReasonStyle(p.Reason)
		if p.GPU == nil {
			t.Row(
				HostStyle.Render(p.Host), "-", "-", "-", "-",
				style.Render(p.Reason.String()+": "+truncate(p.Detail, maxDetailLen)),
			)
			continue
		}
		t.Row(
			HostStyle.Render(p.Host),
			strconv.Itoa(p.GPU.Index),
			GPUNameStyle.Render(p.GPU.Name),
			formatReading(p.GPU.Utilization, 1),
			formatReading(p.GPU.TemperatureC, 1),
			style.Render(strings.Join(p.Issues, ", ")),
		)
	}

	return t.String()
}

// DetailTable renders every GPU on every online host.
func DetailTable(snap gpu.ClusterSnapshot, policy gpu.Policy, width int) string {
	t := newTable(width, "Host", "GPU", "Name", "Util %", "Memory MiB", "Mem %", "Temp °C", "Power W", "State")

	rows := 0
	for _, h := range snap.Hosts {
		if !h.OK() {
			continue
		}
		for _, g := range h.GPUs {
			state := MutedStyle.Render("idle")
			if g.Busy {
				state = WarningStyle.Render("busy")
			}
			t.Row(
				HostStyle.Render(h.Host),
				strconv.Itoa(g.Index),
				GPUNameStyle.Render(g.Name),
				LevelStyle(g.Utilization, policy.WarnUtil, policy.CritUtil).Render(g.Utilization.Format(1)),
				g.MemoryUsedMB.Format(0)+" / "+g.MemoryTotalMB.Format(0),
				formatReading(g.MemoryPercent(), 1),
				LevelStyle(g.TemperatureC, policy.WarnTemp, policy.CritTemp).Render(g.TemperatureC.Format(1)),
				g.PowerDrawW.Format(0)+" / "+g.PowerLimitW.Format(0),
				state,
			)
			rows++
		}
	}

	if rows == 0 {
		return MutedStyle.Render("No GPU data")
	}
	return t.String()
}

func problemsHeading(snap gpu.ClusterSnapshot) string {
	counts := gpu.CountByReason(snap.ProblemGPUs)
	if len(counts) == 0 {
		return "Problem GPUs"
	}
	return fmt.Sprintf("Problem GPUs (%d critical, %d warning, %d host errors)",
		counts[gpu.ReasonCritical], counts[gpu.ReasonWarning], counts[gpu.ReasonHostError])
}

func newTable(width int, headers ...string) *table.Table {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return cellStyle
		})
	if width > 0 {
		t = t.Width(width)
	}
	return t
}

func formatReading(r gpu.Reading, prec int) string {
	if !r.Valid {
		return MutedStyle.Render("N/A")
	}
	return r.Format(prec)
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
