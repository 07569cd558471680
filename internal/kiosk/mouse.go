package kiosk

import tea "github.com/charmbracelet/bubbletea"

// clickRegion maps one rendered row to the action a pointer press on it
// triggers. press is the key the click stands in for; row is a listing or
// field index selected before dispatch, -1 when the region is not a row.
type clickRegion struct {
	y     int
	press string
	row   int
}

// onMouse translates a left press on a rendered region into the same
// transition the equivalent key would produce, so pointer and keyboard
// input share one code path.
func (m *Model) onMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}

	for _, r := range m.regions {
		if msg.Y != r.y {
			continue
		}
		if r.row >= 0 {
			m.selectRow(r.row)
		}
		if r.press == "" {
			return m, nil
		}
		if m.prompt != nil {
			return m.updatePrompt(pressKey(r.press))
		}
		return m.updateScreen(pressKey(r.press))
	}
	return m, nil
}

// selectRow moves the active screen's cursor or focus to the clicked row.
func (m *Model) selectRow(i int) {
	switch s := m.screen.(type) {
	case *scanningScreen:
		if i < len(s.candidates) {
			s.cursor = i
		}
	case *enrollScreen:
		if i < len(s.inputs) {
			s.setFocus(i)
		}
	case *deleteScreen:
		if s.listing != nil && i < len(s.listing.Entries) {
			s.cursor = i
		}
	}
}

func pressKey(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}
