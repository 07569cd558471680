// Package kiosk implements the attendance terminal's interactive session:
// one control loop owning the current screen, the scan pipeline results
// and the administrative gating for enrollment and deletion.
package kiosk

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/kozaktomas/face-attendance/internal/vision"
	"github.com/rs/zerolog"
)

// Model is the kiosk session. All mutable session state (current screen,
// drafts, password buffer, dwell timers) lives here and is mutated only
// inside Update.
type Model struct {
	log zerolog.Logger

	frames     vision.FrameSource
	pipeline   roster.Embedder
	resolver   *identity.Resolver
	ledger     *attendance.Ledger
	evaluator  *attendance.Evaluator
	enrollment *roster.EnrollmentManager
	deletion   *roster.DeletionManager
	gate       *AdminGate

	dwell      time.Duration
	frameEvery time.Duration

	screen     screen
	prompt     *passwordPrompt
	dwellToken int
	width      int
	height     int
	quitting   bool

	// regions maps rendered rows to pointer actions; rebuilt on every View.
	regions []clickRegion
}

// Deps bundles the collaborators the session drives.
type Deps struct {
	Frames     vision.FrameSource
	Pipeline   roster.Embedder
	Resolver   *identity.Resolver
	Ledger     *attendance.Ledger
	Evaluator  *attendance.Evaluator
	Enrollment *roster.EnrollmentManager
	Deletion   *roster.DeletionManager
	Gate       *AdminGate
}

// New creates a kiosk session starting on the main screen. Each session
// gets its own id in the log context.
func New(cfg config.KioskConfig, deps Deps, log zerolog.Logger) *Model {
	return &Model{
		log:        log.With().Str("component", "kiosk").Str("session", uuid.NewString()).Logger(),
		frames:     deps.Frames,
		pipeline:   deps.Pipeline,
		resolver:   deps.Resolver,
		ledger:     deps.Ledger,
		evaluator:  deps.Evaluator,
		enrollment: deps.Enrollment,
		deletion:   deps.Deletion,
		gate:       deps.Gate,
		dwell:      cfg.Dwell,
		frameEvery: cfg.FrameInterval,
		screen:     &mainScreen{},
	}
}

func (m *Model) Init() tea.Cmd {
	return textinputBlink
}

// Update is the single tick handler. UI events and pipeline results are
// both messages; nothing mutates the session from outside.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		if m.prompt != nil {
			return m.updatePrompt(msg)
		}
		return m.updateScreen(msg)

	case tea.MouseMsg:
		return m.onMouse(msg)

	case frameTickMsg:
		return m.onFrameTick()

	case scanResultMsg:
		return m.onScanResult(msg)

	case checkRecordedMsg:
		return m.onCheckRecorded(msg)

	case dwellExpiredMsg:
		return m.onDwellExpired(msg)

	case listLoadedMsg:
		return m.onListLoaded(msg)

	case enrollSavedMsg:
		return m.onEnrollSaved(msg)

	case deleteDoneMsg:
		return m.onDeleteDone(msg)
	}

	return m, nil
}

// toMain reverts to the idle screen, discarding any transient state.
func (m *Model) toMain(notice string) (tea.Model, tea.Cmd) {
	m.prompt = nil
	m.dwellToken++
	m.screen = &mainScreen{notice: notice}
	return m, nil
}

func (m *Model) updateScreen(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch s := m.screen.(type) {
	case *mainScreen:
		return m.updateMain(s, msg)
	case *scanningScreen:
		return m.updateScanning(s, msg)
	case *resultScreen:
		return m.dismissResult(s)
	case *arrivalStatusScreen:
		return m.toMain("")
	case *enrollScreen:
		return m.updateEnroll(s, msg)
	case *deleteScreen:
		return m.updateDelete(s, msg)
	}
	return m, nil
}

func (m *Model) updateMain(s *mainScreen, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "s", "enter":
		m.screen = &scanningScreen{status: "Look at the camera"}
		return m, m.frameTick()
	case "e":
		m.prompt = newPasswordPrompt(actionEnroll, "")
		return m, nil
	case "d":
		m.prompt = newPasswordPrompt(actionOpenDeletion, "")
		return m, nil
	case "q", "esc":
		// Cancel on the main screen ends the session.
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) updateScanning(s *scanningScreen, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if len(s.candidates) > 0 {
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
			return m, nil
		case "down", "j":
			if s.cursor < len(s.candidates)-1 {
				s.cursor++
			}
			return m, nil
		case "enter":
			// Operator picked one of the too-close candidates; the
			// chosen identity re-enters the match path.
			chosen := s.candidates[s.cursor]
			m.log.Info().Str("name", chosen.Name).Msg("ambiguity resolved by operator")
			s.candidates = nil
			s.inFlight = true // gate ticks until the check is recorded
			return m, m.recordCheck(chosen.PersonID, chosen.Name)
		case "esc":
			return m.toMain("")
		}
		return m, nil
	}

	if msg.String() == "esc" {
		return m.toMain("")
	}
	return m, nil
}

func (m *Model) onFrameTick() (tea.Model, tea.Cmd) {
	s, ok := m.screen.(*scanningScreen)
	if !ok {
		return m, nil
	}
	// One resolution at a time; a pending result or an open
	// disambiguation choice pauses the pipeline.
	if s.inFlight || len(s.candidates) > 0 {
		return m, m.frameTick()
	}
	s.inFlight = true
	return m, tea.Batch(m.scanOnce(), m.frameTick())
}

func (m *Model) onScanResult(msg scanResultMsg) (tea.Model, tea.Cmd) {
	s, ok := m.screen.(*scanningScreen)
	if !ok {
		return m, nil // scan was cancelled while the command ran
	}

	if msg.err != nil {
		s.inFlight = false
		if errors.Is(msg.err, store.ErrExtractionFailure) {
			// No confident face in this frame; keep scanning.
			return m, nil
		}
		m.log.Error().Err(msg.err).Msg("scan failed")
		s.status = "Scan failed, retrying"
		return m, nil
	}

	switch msg.resolution.Outcome {
	case identity.Match:
		// inFlight stays set until the check has been recorded, so a
		// tick landing in between cannot start a second pipeline run.
		best := msg.resolution.Best
		return m, m.recordCheck(best.PersonID, best.Name)

	case identity.Ambiguous:
		s.inFlight = false
		s.candidates = msg.resolution.Candidates
		s.cursor = 0
		return m, nil

	default: // Unknown
		m.dwellToken++
		m.screen = &resultScreen{
			headline: "Face not recognized",
			detail:   "Ask an administrator to enroll you.",
			failed:   true,
		}
		return m, m.dwellTimer(m.dwellToken)
	}
}

func (m *Model) onCheckRecorded(msg checkRecordedMsg) (tea.Model, tea.Cmd) {
	if _, ok := m.screen.(*scanningScreen); !ok {
		return m, nil // scan was cancelled while the record was in flight
	}

	if msg.err != nil {
		m.log.Error().Err(msg.err).Str("name", msg.name).Msg("recording check failed")
		return m.toMain("Could not record attendance, try again")
	}

	res := &resultScreen{}
	switch {
	case msg.event.Debounced:
		res.headline = fmt.Sprintf("Already recorded, %s", msg.name)
		res.detail = fmt.Sprintf("Checked %s at %s", msg.event.Kind, msg.event.At.Format("15:04"))
	case msg.event.Kind == store.CheckIn:
		res.headline = fmt.Sprintf("Welcome, %s", msg.name)
		res.detail = fmt.Sprintf("Checked in at %s", msg.event.At.Format("15:04"))
		res.followUp = &arrivalStatusScreen{
			headline: fmt.Sprintf("You are %s", msg.verdict),
			detail:   fmt.Sprintf("Scheduled start %s", msg.scheduled),
			late:     msg.late,
		}
	default:
		res.headline = fmt.Sprintf("Goodbye, %s", msg.name)
		res.detail = fmt.Sprintf("Checked out at %s", msg.event.At.Format("15:04"))
	}

	m.dwellToken++
	m.screen = res
	return m, m.dwellTimer(m.dwellToken)
}

// dismissResult advances past a result screen, either into its follow-up
// arrival verdict or back to main.
func (m *Model) dismissResult(s *resultScreen) (tea.Model, tea.Cmd) {
	if s.followUp != nil {
		m.dwellToken++
		m.screen = s.followUp
		return m, m.dwellTimer(m.dwellToken)
	}
	return m.toMain("")
}

func (m *Model) onDwellExpired(msg dwellExpiredMsg) (tea.Model, tea.Cmd) {
	if msg.token != m.dwellToken {
		return m, nil // superseded by an explicit dismiss
	}
	switch s := m.screen.(type) {
	case *resultScreen:
		return m.dismissResult(s)
	case *arrivalStatusScreen:
		return m.toMain("")
	}
	return m, nil
}

func (m *Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		// Cancelling the prompt discards the pending action. A pending
		// per-target delete falls back to the listing underneath.
		if _, ok := m.screen.(*deleteScreen); ok && m.prompt.pending == actionConfirmDelete {
			m.prompt = nil
			return m, nil
		}
		return m.toMain("")

	case "enter":
		password := m.prompt.input.Value()
		if err := m.gate.Verify(password); err != nil {
			m.log.Warn().Msg("admin authorization failed")
			return m.toMain("Authorization failed")
		}
		return m.onAuthorized()
	}

	var cmd tea.Cmd
	m.prompt.input, cmd = m.prompt.input.Update(msg)
	return m, cmd
}

// onAuthorized executes the action the prompt was gating.
func (m *Model) onAuthorized() (tea.Model, tea.Cmd) {
	pending, target := m.prompt.pending, m.prompt.target
	m.prompt = nil

	switch pending {
	case actionEnroll:
		m.screen = newEnrollScreen()
		return m, textinputBlink

	case actionOpenDeletion:
		s := newDeleteScreen()
		m.screen = s
		return m, tea.Batch(textinputBlink, m.loadList("", 0))

	case actionConfirmDelete:
		if s, ok := m.screen.(*deleteScreen); ok {
			s.loading = true
		}
		return m, m.deletePerson(target)
	}
	return m, nil
}

func (m *Model) updateEnroll(s *enrollScreen, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if s.saving {
		if msg.String() == "esc" {
			return m.toMain("")
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		return m.toMain("")

	case "tab", "down":
		s.setFocus((s.focus + 1) % len(s.inputs))
		return m, nil

	case "shift+tab", "up":
		s.setFocus((s.focus + len(s.inputs) - 1) % len(s.inputs))
		return m, nil

	case "enter":
		if s.focus < len(s.inputs)-1 {
			s.setFocus(s.focus + 1)
			return m, nil
		}
		// Last field confirmed: capture a frame and commit the draft.
		s.saving = true
		s.notice = "Capturing face..."
		return m, m.saveEnrollment(
			s.inputs[enrollFieldName].Value(),
			s.inputs[enrollFieldStart].Value(),
			s.inputs[enrollFieldEnd].Value(),
		)
	}

	var cmd tea.Cmd
	s.inputs[s.focus], cmd = s.inputs[s.focus].Update(msg)
	return m, cmd
}

func (s *enrollScreen) setFocus(i int) {
	s.inputs[s.focus].Blur()
	s.focus = i
	s.inputs[s.focus].Focus()
}

func (m *Model) onEnrollSaved(msg enrollSavedMsg) (tea.Model, tea.Cmd) {
	s, ok := m.screen.(*enrollScreen)
	if !ok {
		return m, nil
	}
	if msg.err != nil {
		// Validation, extraction and duplicate failures are local; the
		// draft stays editable.
		s.saving = false
		s.notice = enrollErrorNotice(msg.err)
		m.log.Warn().Err(msg.err).Msg("enrollment rejected")
		return m, nil
	}
	m.log.Info().Str("name", msg.person.Name).Msg("enrollment committed")
	return m.toMain(fmt.Sprintf("%s enrolled", msg.person.Name))
}

func enrollErrorNotice(err error) string {
	switch {
	case errors.Is(err, store.ErrDuplicateName):
		return "That name is already enrolled"
	case errors.Is(err, store.ErrValidation):
		return "Check the name and HH:MM schedule times"
	case errors.Is(err, store.ErrExtractionFailure):
		return "No face detected, face the camera and try again"
	default:
		return "Enrollment failed, try again"
	}
}

func (m *Model) updateDelete(s *deleteScreen, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.toMain("")

	case "up":
		if s.cursor > 0 {
			s.cursor--
		}
		return m, nil

	case "down":
		if s.listing != nil && s.cursor < len(s.listing.Entries)-1 {
			s.cursor++
		}
		return m, nil

	case "left":
		if s.listing != nil && s.listing.Page > 0 {
			s.loading = true
			return m, m.loadList(s.filter.Value(), s.listing.Page-1)
		}
		return m, nil

	case "right":
		if s.listing != nil && s.listing.Page < s.listing.TotalPages-1 {
			s.loading = true
			return m, m.loadList(s.filter.Value(), s.listing.Page+1)
		}
		return m, nil

	case "enter":
		if entry, ok := s.selected(); ok {
			// Each deletion is gated by its own credential check.
			m.prompt = newPasswordPrompt(actionConfirmDelete, entry.Person.Name)
		}
		return m, nil
	}

	// Everything else edits the filter and reloads the first page.
	var cmd tea.Cmd
	before := s.filter.Value()
	s.filter, cmd = s.filter.Update(msg)
	if s.filter.Value() != before {
		s.cursor = 0
		s.loading = true
		return m, tea.Batch(cmd, m.loadList(s.filter.Value(), 0))
	}
	return m, cmd
}

func (m *Model) onListLoaded(msg listLoadedMsg) (tea.Model, tea.Cmd) {
	s, ok := m.screen.(*deleteScreen)
	if !ok {
		return m, nil
	}
	s.loading = false
	if msg.err != nil {
		m.log.Error().Err(msg.err).Msg("listing failed")
		s.notice = "Could not load the roster"
		return m, nil
	}
	s.listing = msg.listing
	if s.cursor >= len(msg.listing.Entries) {
		s.cursor = 0
	}
	return m, nil
}

func (m *Model) onDeleteDone(msg deleteDoneMsg) (tea.Model, tea.Cmd) {
	s, ok := m.screen.(*deleteScreen)
	if !ok {
		return m, nil
	}
	if msg.err != nil {
		s.loading = false
		if errors.Is(msg.err, store.ErrNotFound) {
			s.notice = fmt.Sprintf("%s is no longer enrolled", msg.name)
		} else {
			m.log.Error().Err(msg.err).Str("name", msg.name).Msg("deletion failed")
			s.notice = "Deletion failed, try again"
		}
		return m, m.loadList(s.filter.Value(), pageOf(s))
	}
	s.notice = fmt.Sprintf("%s deleted", msg.name)
	return m, m.loadList(s.filter.Value(), pageOf(s))
}

func pageOf(s *deleteScreen) int {
	if s.listing == nil {
		return 0
	}
	return s.listing.Page
}
