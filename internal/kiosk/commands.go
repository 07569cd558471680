package kiosk

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/store"
)

// Messages produced by the commands below. Every blocking store or
// sidecar call runs as a tea.Cmd so the update loop never stalls.

type frameTickMsg time.Time

type scanResultMsg struct {
	resolution *identity.Resolution
	err        error
}

type checkRecordedMsg struct {
	name      string
	event     *store.AttendanceEvent
	verdict   string // empty for check-outs and debounced repeats
	late      bool
	scheduled string
	err       error
}

type listLoadedMsg struct {
	listing *roster.Listing
	err     error
}

type enrollSavedMsg struct {
	person *store.Person
	err    error
}

type deleteDoneMsg struct {
	name string
	err  error
}

type dwellExpiredMsg struct {
	token int
}

func (m *Model) frameTick() tea.Cmd {
	return tea.Tick(m.frameEvery, func(t time.Time) tea.Msg {
		return frameTickMsg(t)
	})
}

func (m *Model) dwellTimer(token int) tea.Cmd {
	return tea.Tick(m.dwell, func(time.Time) tea.Msg {
		return dwellExpiredMsg{token: token}
	})
}

// scanOnce grabs one frame and resolves it. A frame without a usable face
// resolves to a nil resolution so the caller keeps scanning quietly.
func (m *Model) scanOnce() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		frame, err := m.frames.Grab(ctx)
		if err != nil {
			return scanResultMsg{err: err}
		}

		embedding, err := m.pipeline.ExtractFirstFace(ctx, frame)
		if err != nil {
			return scanResultMsg{err: err}
		}

		res, err := m.resolver.Resolve(ctx, embedding)
		if err != nil {
			return scanResultMsg{err: err}
		}
		return scanResultMsg{resolution: res}
	}
}

// recordCheck toggles attendance for the identified person and, for fresh
// check-ins, evaluates lateness in the same command.
func (m *Model) recordCheck(personID int64, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		event, err := m.ledger.RecordCheck(ctx, personID, time.Now())
		if err != nil {
			return checkRecordedMsg{name: name, err: err}
		}

		msg := checkRecordedMsg{name: name, event: event}
		if event.Kind == store.CheckIn && !event.Debounced {
			assessment, err := m.evaluator.EvaluateLateness(ctx, personID, event.At)
			if err != nil {
				return checkRecordedMsg{name: name, err: err}
			}
			msg.verdict = assessment.Verdict.String()
			msg.late = assessment.Verdict == attendance.Late
			msg.scheduled = assessment.Schedule.Start.String()
		}
		return msg
	}
}

func (m *Model) loadList(filter string, page int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		listing, err := m.deletion.List(ctx, filter, page)
		return listLoadedMsg{listing: listing, err: err}
	}
}

// saveEnrollment captures a fresh frame and commits the draft.
func (m *Model) saveEnrollment(name, start, end string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		frame, err := m.frames.Grab(ctx)
		if err != nil {
			return enrollSavedMsg{err: err}
		}

		person, err := m.enrollment.Enroll(ctx, name, start, end, frame)
		return enrollSavedMsg{person: person, err: err}
	}
}

func (m *Model) deletePerson(name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := m.deletion.Delete(ctx, name)
		return deleteDoneMsg{name: name, err: err}
	}
}
