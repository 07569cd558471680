package kiosk

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/store"
)

// textinputBlink drives the cursor blink of whichever input has focus.
var textinputBlink tea.Cmd = textinput.Blink

// screen is the tagged variant over kiosk states. Exactly one screen is
// active at a time; the password prompt overlays it without replacing it.
type screen interface {
	screenName() string
}

// mainScreen is the idle menu.
type mainScreen struct {
	notice string // last recoverable error or confirmation, if any
}

func (mainScreen) screenName() string { return "main" }

// scanningScreen runs the frame-to-identity pipeline once per tick.
// A non-empty candidates slice suspends scanning until the operator
// picks one of the too-close-to-call identities.
type scanningScreen struct {
	inFlight   bool
	candidates []store.Neighbor
	cursor     int
	status     string
}

func (scanningScreen) screenName() string { return "scanning" }

// resultScreen shows the outcome of one attendance check. followUp, when
// set, is entered after the dwell instead of returning to main.
type resultScreen struct {
	headline string
	detail   string
	failed   bool
	followUp *arrivalStatusScreen
}

func (resultScreen) screenName() string { return "attendance_result" }

// arrivalStatusScreen shows the on-time/late verdict for a check-in.
type arrivalStatusScreen struct {
	headline string
	detail   string
	late     bool
}

func (arrivalStatusScreen) screenName() string { return "arrival_status" }

// enrollScreen collects name and schedule, then captures a frame on save.
type enrollScreen struct {
	inputs [3]textinput.Model // name, start, end
	focus  int
	notice string
	saving bool
}

func (enrollScreen) screenName() string { return "enrolling" }

const (
	enrollFieldName = iota
	enrollFieldStart
	enrollFieldEnd
)

func newEnrollScreen() *enrollScreen {
	s := &enrollScreen{}

	name := textinput.New()
	name.Placeholder = "Full name"
	name.CharLimit = 64
	name.Focus()

	start := textinput.New()
	start.Placeholder = "09:00"
	start.CharLimit = 5

	end := textinput.New()
	end.Placeholder = "18:00"
	end.CharLimit = 5

	s.inputs = [3]textinput.Model{name, start, end}
	return s
}

// deleteScreen lists enrolled persons with live filtering and pagination.
type deleteScreen struct {
	filter  textinput.Model
	listing *roster.Listing
	cursor  int
	notice  string
	loading bool
}

func (deleteScreen) screenName() string { return "deleting" }

func newDeleteScreen() *deleteScreen {
	filter := textinput.New()
	filter.Placeholder = "Filter by name"
	filter.CharLimit = 64
	filter.Focus()
	return &deleteScreen{filter: filter, loading: true}
}

// selected returns the highlighted entry, if the page has one.
func (s *deleteScreen) selected() (roster.Entry, bool) {
	if s.listing == nil || len(s.listing.Entries) == 0 {
		return roster.Entry{}, false
	}
	if s.cursor >= len(s.listing.Entries) {
		s.cursor = len(s.listing.Entries) - 1
	}
	return s.listing.Entries[s.cursor], true
}

// pendingAction is what a successful password entry unlocks.
type pendingAction int

const (
	actionEnroll pendingAction = iota
	actionOpenDeletion
	actionConfirmDelete
)

// passwordPrompt is the modal credential overlay. The underlying screen
// stays untouched while the prompt is open.
type passwordPrompt struct {
	input   textinput.Model
	pending pendingAction
	target  string // set for actionConfirmDelete
	notice  string
}

func newPasswordPrompt(pending pendingAction, target string) *passwordPrompt {
	input := textinput.New()
	input.Placeholder = "Admin password"
	input.EchoMode = textinput.EchoPassword
	input.CharLimit = 128
	input.Focus()
	return &passwordPrompt{input: input, pending: pending, target: target}
}
