package store

import (
	"context"
	"time"
)

// VectorSearcher ranks enrolled embeddings against a query vector.
type VectorSearcher interface {
	// TopK returns the k nearest enrolled embeddings by cosine similarity,
	// best first. An empty roster yields an empty slice, not an error.
	TopK(ctx context.Context, embedding []float32, k int) ([]Neighbor, error)
}

// PersonReader provides read access to the enrolled roster.
type PersonReader interface {
	// GetPerson retrieves a person by exact name; ErrNotFound if missing.
	GetPerson(ctx context.Context, name string) (*Person, error)
	// ListPersons returns all enrolled persons ordered by name.
	ListPersons(ctx context.Context) ([]Person, error)
}

// PersonWriter mutates the roster. All multi-row operations are atomic.
type PersonWriter interface {
	// CreatePerson commits person + embedding + the given schedule in one
	// transaction; ErrDuplicateName if the name is taken.
	CreatePerson(ctx context.Context, name string, embedding []float32, model string, schedule WorkSchedule) (*Person, error)
	// DeletePerson cascades over schedules, attendance events and
	// embeddings in one transaction; ErrNotFound if the name is unknown.
	DeletePerson(ctx context.Context, name string) error
	// RenamePerson changes the identity key; ErrNotFound / ErrDuplicateName
	// apply.
	RenamePerson(ctx context.Context, oldName, newName string) error
}

// ScheduleStore persists per-person daily schedules.
type ScheduleStore interface {
	// ScheduleOn returns the schedule for the person on the event's date,
	// or nil when none exists (callers apply the default window).
	ScheduleOn(ctx context.Context, personID int64, at time.Time) (*WorkSchedule, error)
	// SaveSchedule upserts the (person, date) row.
	SaveSchedule(ctx context.Context, schedule WorkSchedule) error
}

// AttendanceStore persists the append-only check log.
type AttendanceStore interface {
	// LatestEventOn returns the most recent event for the person on the
	// same calendar date as at, or nil when the day has no events.
	LatestEventOn(ctx context.Context, personID int64, at time.Time) (*AttendanceEvent, error)
	// AppendEvent appends one event and returns it with its assigned ID.
	AppendEvent(ctx context.Context, event AttendanceEvent) (*AttendanceEvent, error)
	// EventsOn lists the person's events for the date of at, oldest first.
	EventsOn(ctx context.Context, personID int64, at time.Time) ([]AttendanceEvent, error)
}
