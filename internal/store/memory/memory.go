// Package memory provides an in-memory implementation of the store
// interfaces, used by tests and for running the kiosk without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
)

type personRecord struct {
	person     store.Person
	embeddings []store.StoredEmbedding
	schedules  map[string]store.WorkSchedule // keyed by DayOf(date)
}

// Store is an in-memory roster + schedule + attendance store. Nearest
// neighbor queries run as a linear scan, which is plenty for a single
// kiosk's roster.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	persons map[string]*personRecord
	events  []store.AttendanceEvent

	// Error injection for tests
	TopKError   error
	CreateError error
	AppendError error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		nextID:  1,
		persons: make(map[string]*personRecord),
	}
}

func (s *Store) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// TopK returns the k nearest enrolled embeddings by cosine similarity.
func (s *Store) TopK(ctx context.Context, embedding []float32, k int) ([]store.Neighbor, error) {
	if s.TopKError != nil {
		return nil, s.TopKError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var neighbors []store.Neighbor
	for _, rec := range s.persons {
		for _, emb := range rec.embeddings {
			neighbors = append(neighbors, store.Neighbor{
				PersonID:   rec.person.ID,
				Name:       rec.person.Name,
				Similarity: store.CosineSimilarity(embedding, emb.Embedding),
			})
		}
	}

	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].Similarity > neighbors[j].Similarity
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// GetPerson retrieves a person by exact name.
func (s *Store) GetPerson(ctx context.Context, name string) (*store.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.persons[name]
	if !ok {
		return nil, fmt.Errorf("get person %q: %w", name, store.ErrNotFound)
	}
	p := rec.person
	return &p, nil
}

// ListPersons returns all enrolled persons ordered by name.
func (s *Store) ListPersons(ctx context.Context) ([]store.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	persons := make([]store.Person, 0, len(s.persons))
	for _, rec := range s.persons {
		persons = append(persons, rec.person)
	}
	sort.Slice(persons, func(i, j int) bool { return persons[i].Name < persons[j].Name })
	return persons, nil
}

// CreatePerson commits person + embedding + schedule atomically.
func (s *Store) CreatePerson(ctx context.Context, name string, embedding []float32, model string, schedule store.WorkSchedule) (*store.Person, error) {
	if s.CreateError != nil {
		return nil, s.CreateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.persons[name]; ok {
		return nil, fmt.Errorf("create person %q: %w", name, store.ErrDuplicateName)
	}

	person := store.Person{
		ID:        s.allocID(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	emb := store.StoredEmbedding{
		ID:        s.allocID(),
		PersonID:  person.ID,
		Name:      name,
		Embedding: embedding,
		Model:     model,
		Dim:       len(embedding),
		CreatedAt: person.CreatedAt,
	}
	schedule.PersonID = person.ID

	s.persons[name] = &personRecord{
		person:     person,
		embeddings: []store.StoredEmbedding{emb},
		schedules: map[string]store.WorkSchedule{
			store.DayOf(schedule.Date): schedule,
		},
	}
	return &person, nil
}

// DeletePerson cascades over schedules, attendance events and embeddings.
func (s *Store) DeletePerson(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.persons[name]
	if !ok {
		return fmt.Errorf("delete person %q: %w", name, store.ErrNotFound)
	}

	kept := s.events[:0]
	for _, e := range s.events {
		if e.PersonID != rec.person.ID {
			kept = append(kept, e)
		}
	}
	s.events = kept
	delete(s.persons, name)
	return nil
}

// RenamePerson changes the identity key.
func (s *Store) RenamePerson(ctx context.Context, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.persons[oldName]
	if !ok {
		return fmt.Errorf("rename person %q: %w", oldName, store.ErrNotFound)
	}
	if _, taken := s.persons[newName]; taken {
		return fmt.Errorf("rename person to %q: %w", newName, store.ErrDuplicateName)
	}

	rec.person.Name = newName
	for i := range rec.embeddings {
		rec.embeddings[i].Name = newName
	}
	delete(s.persons, oldName)
	s.persons[newName] = rec
	return nil
}

// ScheduleOn returns the schedule for the person on at's date, or nil.
func (s *Store) ScheduleOn(ctx context.Context, personID int64, at time.Time) (*store.WorkSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.persons {
		if rec.person.ID != personID {
			continue
		}
		if sched, ok := rec.schedules[store.DayOf(at)]; ok {
			return &sched, nil
		}
		return nil, nil
	}
	return nil, nil
}

// SaveSchedule upserts the (person, date) row.
func (s *Store) SaveSchedule(ctx context.Context, schedule store.WorkSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.persons {
		if rec.person.ID == schedule.PersonID {
			rec.schedules[store.DayOf(schedule.Date)] = schedule
			return nil
		}
	}
	return fmt.Errorf("save schedule for person %d: %w", schedule.PersonID, store.ErrNotFound)
}

// LatestEventOn returns the most recent event for the person on at's date.
func (s *Store) LatestEventOn(ctx context.Context, personID int64, at time.Time) (*store.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := store.DayOf(at)
	var latest *store.AttendanceEvent
	for i := range s.events {
		e := s.events[i]
		if e.PersonID != personID || store.DayOf(e.At) != day {
			continue
		}
		if latest == nil || e.At.After(latest.At) {
			latest = &s.events[i]
		}
	}
	if latest == nil {
		return nil, nil
	}
	e := *latest
	return &e, nil
}

// AppendEvent appends one event to the log.
func (s *Store) AppendEvent(ctx context.Context, event store.AttendanceEvent) (*store.AttendanceEvent, error) {
	if s.AppendError != nil {
		return nil, s.AppendError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = s.allocID()
	s.events = append(s.events, event)
	e := event
	return &e, nil
}

// EventsOn lists the person's events for at's date, oldest first.
func (s *Store) EventsOn(ctx context.Context, personID int64, at time.Time) ([]store.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := store.DayOf(at)
	var events []store.AttendanceEvent
	for _, e := range s.events {
		if e.PersonID == personID && store.DayOf(e.At) == day {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].At.Before(events[j].At) })
	return events, nil
}

// Verify interface compliance
var _ store.VectorSearcher = (*Store)(nil)
var _ store.PersonReader = (*Store)(nil)
var _ store.PersonWriter = (*Store)(nil)
var _ store.ScheduleStore = (*Store)(nil)
var _ store.AttendanceStore = (*Store)(nil)
