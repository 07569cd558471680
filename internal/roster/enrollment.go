// Package roster manages the enrolled population: validated enrollment,
// renames and cascading deletion with a filtered listing for the kiosk.
package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/rs/zerolog"
)

// Embedder turns a captured frame into a unit-norm face embedding.
type Embedder interface {
	ExtractFirstFace(ctx context.Context, frame []byte) ([]float32, error)
	Model() string
}

// EnrollmentManager validates and commits new persons.
type EnrollmentManager struct {
	writer   store.PersonWriter
	embedder Embedder
	log      zerolog.Logger
}

// NewEnrollmentManager creates an enrollment manager.
func NewEnrollmentManager(writer store.PersonWriter, embedder Embedder, log zerolog.Logger) *EnrollmentManager {
	return &EnrollmentManager{
		writer:   writer,
		embedder: embedder,
		log:      log.With().Str("component", "enrollment").Logger(),
	}
}

// Enroll extracts an embedding from the captured frame and commits the
// person, the embedding and today's schedule atomically.
//
// Failure modes map onto the store sentinels: ErrValidation for a bad
// name or schedule, ErrExtractionFailure when no usable face is found,
// ErrDuplicateName when the name is taken.
func (m *EnrollmentManager) Enroll(ctx context.Context, name, scheduleStart, scheduleEnd string, frame []byte) (*store.Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
	}

	start, err := store.ParseTimeOfDay(scheduleStart)
	if err != nil {
		return nil, fmt.Errorf("schedule start: %w", err)
	}
	end, err := store.ParseTimeOfDay(scheduleEnd)
	if err != nil {
		return nil, fmt.Errorf("schedule end: %w", err)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: schedule start %s must be before end %s", store.ErrValidation, start, end)
	}

	embedding, err := m.embedder.ExtractFirstFace(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("extracting enrollment face: %w", err)
	}

	person, err := m.writer.CreatePerson(ctx, name, embedding, m.embedder.Model(), store.WorkSchedule{
		Date:  time.Now(),
		Start: start,
		End:   end,
	})
	if err != nil {
		return nil, err
	}

	m.log.Info().Str("name", name).Str("schedule", start.String()+"-"+end.String()).Msg("enrolled")
	return person, nil
}

// Rename corrects a person's name, keeping embeddings and history attached.
func (m *EnrollmentManager) Rename(ctx context.Context, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("%w: new name must not be empty", store.ErrValidation)
	}
	if err := m.writer.RenamePerson(ctx, oldName, newName); err != nil {
		return err
	}
	m.log.Info().Str("from", oldName).Str("to", newName).Msg("renamed")
	return nil
}
