package monitor

import (
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/gpumon/internal/gpu"
)

// Layout reserves these rows around the scrolling viewport.
const (
	headerHeight = 2
	footerHeight = 2
)

// clockInterval refreshes the "updated Xs ago" text between snapshots.
const clockInterval = time.Second

// SnapshotMsg delivers a completed poll cycle to the dashboard.
type SnapshotMsg struct {
	Snapshot gpu.ClusterSnapshot
}

// FatalMsg reports a scheduler error that ends monitoring.
type FatalMsg struct {
	Err error
}

// clockMsg drives the header clock.
type clockMsg time.Time

// Model is the Bubble Tea model for the cluster dashboard.
type Model struct {
	title    string
	hosts    int
	policy   gpu.Policy
	interval time.Duration

	snapshot    gpu.ClusterSnapshot
	hasSnapshot bool
	lastUpdate  time.Time

	showAll  bool
	showHelp bool
	quitting bool
	err      error

	width    int
	height   int
	viewport viewport.Model
	ready    bool

	now func() time.Time
}

// NewModel creates a dashboard for a cluster of hosts hosts. It shows
// nothing but a waiting line until the first SnapshotMsg arrives.
func NewModel(title string, hosts int, policy gpu.Policy, interval time.Duration, showAll bool) Model {
	return Model{
		title:    title,
		hosts:    hosts,
		policy:   policy,
		interval: interval,
		showAll:  showAll,
		now:      time.Now,
	}
}

// Init starts the header clock.
func (m Model) Init() tea.Cmd {
	return clockCmd()
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		handled, cmd := m.HandleKeyMsg(msg)
		if handled {
			return m, cmd
		}
		if m.ready {
			var vcmd tea.Cmd
			m.viewport, vcmd = m.viewport.Update(msg)
			return m, vcmd
		}

	case tea.MouseMsg:
		if m.ready {
			var vcmd tea.Cmd
			m.viewport, vcmd = m.viewport.Update(msg)
			return m, vcmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - headerHeight - footerHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refreshContent()

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		m.hasSnapshot = true
		m.lastUpdate = msg.Snapshot.GeneratedAt
		if m.lastUpdate.IsZero() {
			m.lastUpdate = m.now()
		}
		m.refreshContent()

	case FatalMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit

	case clockMsg:
		return m, clockCmd()
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

// Err returns the error carried by a FatalMsg, if any.
func (m Model) Err() error {
	return m.err
}

// Snapshot returns the most recent snapshot and whether one has arrived.
func (m Model) Snapshot() (gpu.ClusterSnapshot, bool) {
	return m.snapshot, m.hasSnapshot
}

// ShowAll reports whether the per-GPU detail table is visible.
func (m Model) ShowAll() bool {
	return m.showAll
}

// SecondsSinceUpdate returns seconds since the last snapshot, or -1 before the first.
func (m Model) SecondsSinceUpdate() int {
	if !m.hasSnapshot {
		return -1
	}
	d := m.now().Sub(m.lastUpdate)
	if d < 0 {
		return 0
	}
	return int(d.Seconds())
}

// refreshContent re-renders the scrollable body after data or size changes.
func (m *Model) refreshContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.body())
}

func (m Model) body() string {
	if !m.hasSnapshot {
		return MutedStyle.Render(waitingText(m.hosts))
	}
	return RenderReport(m.snapshot, ReportOptions{
		Title:   m.title,
		Policy:  m.policy,
		ShowAll: m.showAll,
		Width:   m.width,
	})
}

func clockCmd() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}
