// Package store defines the persistence types and interfaces shared by the
// attendance terminal: enrolled persons with their face embeddings, per-day
// work schedules and the append-only attendance event log.
package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Person is an enrolled identity. Names are unique and act as the primary
// identity key; embeddings belong exclusively to the person that produced them.
type Person struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// StoredEmbedding is a face embedding row owned by a person.
// Vectors are L2-normalized at creation time.
type StoredEmbedding struct {
	ID        int64
	PersonID  int64
	Name      string
	Embedding []float32
	Model     string
	Dim       int
	CreatedAt time.Time
}

// CheckKind is the direction of an attendance event.
type CheckKind string

const (
	CheckIn  CheckKind = "in"
	CheckOut CheckKind = "out"
)

// AttendanceEvent is one row of the append-only check log.
type AttendanceEvent struct {
	ID       int64
	PersonID int64
	Kind     CheckKind
	At       time.Time

	// Debounced marks an event returned for a repeat scan inside the
	// debounce window. Never persisted.
	Debounced bool
}

// WorkSchedule is the expected working window for one person on one date.
// At most one record exists per (person, date).
type WorkSchedule struct {
	PersonID int64
	Date     time.Time // calendar date, time-of-day ignored
	Start    TimeOfDay
	End      TimeOfDay
}

// DefaultSchedule is the fallback window used when no schedule row exists
// for the requested date.
var DefaultSchedule = struct {
	Start TimeOfDay
	End   TimeOfDay
}{
	Start: TimeOfDay{Hour: 9},
	End:   TimeOfDay{Hour: 18},
}

// Neighbor is one ranked result of a nearest-neighbor query.
// Similarity is cosine similarity in [-1, 1].
type Neighbor struct {
	PersonID   int64
	Name       string
	Similarity float64
}

// TimeOfDay is a wall-clock time with minute granularity.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (a trailing ":SS" as produced by Postgres
// TIME columns is tolerated and ignored). Out-of-range components return
// ErrValidation.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("%w: malformed time %q, expected HH:MM", ErrValidation, s)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil {
		return TimeOfDay{}, fmt.Errorf("%w: malformed time %q, expected HH:MM", ErrValidation, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: time %q out of range", ErrValidation, s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// Minutes returns the time as minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is strictly earlier than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MinuteOf truncates a timestamp to its minute-of-day in local time.
func MinuteOf(at time.Time) TimeOfDay {
	return TimeOfDay{Hour: at.Hour(), Minute: at.Minute()}
}

// DayOf returns the calendar date of a timestamp as a YYYY-MM-DD key.
// All "same day" comparisons in the stores use this key.
func DayOf(at time.Time) string {
	return at.Format("2006-01-02")
}
