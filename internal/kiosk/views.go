package kiosk

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).Padding(0, 2)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	okStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	lateStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	failStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 3)
)

// boxRowOffset is how many terminal rows the box border and top padding
// push the body down; click regions are shifted by it.
const boxRowOffset = 2

// viewBuilder accumulates body lines and the click regions they expose.
type viewBuilder struct {
	lines   []string
	regions []clickRegion
}

func (b *viewBuilder) line(s string) {
	b.lines = append(b.lines, s)
}

func (b *viewBuilder) blank() {
	b.line("")
}

// tappable renders a line and registers it as a pointer target.
func (b *viewBuilder) tappable(s, press string, row int) {
	b.regions = append(b.regions, clickRegion{y: len(b.lines), press: press, row: row})
	b.line(s)
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	b := &viewBuilder{}
	if m.prompt != nil {
		m.viewPrompt(b)
	} else {
		switch s := m.screen.(type) {
		case *mainScreen:
			m.viewMain(b, s)
		case *scanningScreen:
			m.viewScanning(b, s)
		case *resultScreen:
			m.viewResult(b, s)
		case *arrivalStatusScreen:
			m.viewArrivalStatus(b, s)
		case *enrollScreen:
			m.viewEnroll(b, s)
		case *deleteScreen:
			m.viewDelete(b, s)
		}
	}

	m.regions = b.regions
	for i := range m.regions {
		m.regions[i].y += boxRowOffset
	}

	return boxStyle.Render(strings.Join(b.lines, "\n")) + "\n"
}

func (m *Model) viewMain(b *viewBuilder, s *mainScreen) {
	b.line(titleStyle.Render("Attendance"))
	b.blank()
	if s.notice != "" {
		b.line(noticeStyle.Render(s.notice))
		b.blank()
	}
	b.tappable("▸ Scan", "s", -1)
	b.tappable("▸ Enroll", "e", -1)
	b.tappable("▸ Delete", "d", -1)
	b.tappable("▸ Quit", "q", -1)
	b.blank()
	b.line(helpStyle.Render("s scan · e enroll · d delete · q quit"))
}

func (m *Model) viewScanning(b *viewBuilder, s *scanningScreen) {
	b.line(titleStyle.Render("Scanning"))
	b.blank()

	if len(s.candidates) > 0 {
		b.line("More than one close match. Who are you?")
		b.blank()
		for i, c := range s.candidates {
			line := fmt.Sprintf("%s  (%.2f)", c.Name, c.Similarity)
			if i == s.cursor {
				line = selectedStyle.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.tappable(line, "enter", i)
		}
		b.blank()
		b.line(helpStyle.Render("up/down choose · enter confirm · esc cancel"))
		return
	}

	b.line(s.status)
	b.blank()
	b.tappable("▸ Cancel", "esc", -1)
	b.blank()
	b.line(helpStyle.Render("esc cancel"))
}

func (m *Model) viewResult(b *viewBuilder, s *resultScreen) {
	style := okStyle
	if s.failed {
		style = failStyle
	}
	b.line(style.Render(s.headline))
	b.blank()
	b.line(s.detail)
	b.blank()
	b.tappable("▸ Continue", "enter", -1)
	b.line(helpStyle.Render("any key to continue"))
}

func (m *Model) viewArrivalStatus(b *viewBuilder, s *arrivalStatusScreen) {
	style := okStyle
	if s.late {
		style = lateStyle
	}
	b.line(style.Render(s.headline))
	b.blank()
	b.line(s.detail)
	b.blank()
	b.tappable("▸ Continue", "enter", -1)
	b.line(helpStyle.Render("any key to continue"))
}

func (m *Model) viewEnroll(b *viewBuilder, s *enrollScreen) {
	b.line(titleStyle.Render("Enroll"))
	b.blank()

	labels := [3]string{"Name ", "Start", "End  "}
	for i := range s.inputs {
		b.tappable(labels[i]+" "+s.inputs[i].View(), "", i)
	}

	if s.notice != "" {
		b.blank()
		b.line(noticeStyle.Render(s.notice))
	}
	b.blank()
	// Save confirms from the last field so every earlier one is kept.
	b.tappable("▸ Save", "enter", enrollFieldEnd)
	b.tappable("▸ Cancel", "esc", -1)
	b.blank()
	b.line(helpStyle.Render("tab next field · enter save · esc cancel"))
}

func (m *Model) viewDelete(b *viewBuilder, s *deleteScreen) {
	b.line(titleStyle.Render("Delete enrollment"))
	b.blank()
	b.line("Search " + s.filter.View())
	b.blank()

	switch {
	case s.loading:
		b.line("Loading...")
	case s.listing == nil || len(s.listing.Entries) == 0:
		b.line("No one matches.")
	default:
		for i, e := range s.listing.Entries {
			status := "out"
			if e.CheckedIn {
				status = "in"
			}
			line := fmt.Sprintf("%-24s %s", e.Person.Name, status)
			if i == s.cursor {
				line = selectedStyle.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.tappable(line, "", i)
		}
		b.blank()
		b.line(fmt.Sprintf("Page %d/%d · %d enrolled", s.listing.Page+1, s.listing.TotalPages, s.listing.Total))
		if s.listing.TotalPages > 1 {
			b.tappable("▸ Previous page", "left", -1)
			b.tappable("▸ Next page", "right", -1)
		}
		b.blank()
		b.tappable("▸ Delete selected", "enter", -1)
	}

	if s.notice != "" {
		b.blank()
		b.line(noticeStyle.Render(s.notice))
	}
	b.blank()
	b.tappable("▸ Back", "esc", -1)
	b.line(helpStyle.Render("type to filter · up/down select · left/right page · enter delete · esc back"))
}

func (m *Model) viewPrompt(b *viewBuilder) {
	b.line(titleStyle.Render("Administrator"))
	b.blank()
	if m.prompt.pending == actionConfirmDelete {
		b.line(fmt.Sprintf("Confirm deletion of %s", m.prompt.target))
		b.blank()
	}
	b.line("Password " + m.prompt.input.View())
	if m.prompt.notice != "" {
		b.blank()
		b.line(noticeStyle.Render(m.prompt.notice))
	}
	b.blank()
	b.tappable("▸ Confirm", "enter", -1)
	b.tappable("▸ Cancel", "esc", -1)
	b.blank()
	b.line(helpStyle.Render("enter confirm · esc cancel"))
}
