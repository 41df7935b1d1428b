package monitor

import tea "github.com/charmbracelet/bubbletea"

// Key bindings handled by the dashboard. Scrolling keys (j/k, arrows,
// pgup/pgdn) fall through to the viewport.
const (
	KeyQuit       = "q"
	KeyQuitAlt    = "ctrl+c"
	KeyToggleAll  = "a"
	KeyTop        = "home"
	KeyBottom     = "end"
	KeyCollapse   = "esc"
	KeyToggleHelp = "?"
)

// HandleKeyMsg processes keyboard input.
// Returns true if the key was handled, false otherwise.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == KeyQuit || key == KeyQuitAlt {
		m.quitting = true
		return true, tea.Quit
	}

	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}

	if m.showHelp {
		// Any other key closes the overlay.
		m.showHelp = false
		return true, nil
	}

	switch key {
	case KeyToggleAll:
		m.showAll = !m.showAll
		m.refreshContent()
		return true, nil

	case KeyTop:
		if m.ready {
			m.viewport.GotoTop()
		}
		return true, nil

	case KeyBottom:
		if m.ready {
			m.viewport.GotoBottom()
		}
		return true, nil
	}

	return false, nil
}
