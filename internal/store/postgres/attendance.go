package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
)

// AttendanceRepository provides PostgreSQL-backed attendance event storage.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// dayBounds returns the half-open interval of at's calendar day in at's
// own location. Comparing timestamps against it keeps the day boundary on
// the kiosk's clock instead of the database server's timezone.
func dayBounds(at time.Time) (time.Time, time.Time) {
	start := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	return start, start.AddDate(0, 0, 1)
}

// LatestEventOn returns the most recent attendance event for the person on
// the day of at, or nil when the person has not checked today.
func (r *AttendanceRepository) LatestEventOn(ctx context.Context, personID int64, at time.Time) (*store.AttendanceEvent, error) {
	from, to := dayBounds(at)
	var ev store.AttendanceEvent
	err := r.pool.QueryRow(ctx, `
		SELECT id, person_id, kind, recorded_at
		FROM attendance_events
		WHERE person_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		ORDER BY recorded_at DESC
		LIMIT 1
	`, personID, from, to).Scan(&ev.ID, &ev.PersonID, &ev.Kind, &ev.At)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest event: %w", err)
	}
	return &ev, nil
}

// AppendEvent inserts a new attendance event and returns it with its id.
func (r *AttendanceRepository) AppendEvent(ctx context.Context, event store.AttendanceEvent) (*store.AttendanceEvent, error) {
	var ev store.AttendanceEvent
	err := r.pool.QueryRow(ctx, `
		INSERT INTO attendance_events (person_id, kind, recorded_at)
		VALUES ($1, $2, $3)
		RETURNING id, person_id, kind, recorded_at
	`, event.PersonID, string(event.Kind), event.At).Scan(&ev.ID, &ev.PersonID, &ev.Kind, &ev.At)
	if err != nil {
		return nil, fmt.Errorf("insert attendance event: %w", err)
	}
	return &ev, nil
}

// EventsOn returns all attendance events for the person on the day of at,
// oldest first.
func (r *AttendanceRepository) EventsOn(ctx context.Context, personID int64, at time.Time) ([]store.AttendanceEvent, error) {
	from, to := dayBounds(at)
	rows, err := r.pool.Query(ctx, `
		SELECT id, person_id, kind, recorded_at
		FROM attendance_events
		WHERE person_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		ORDER BY recorded_at
	`, personID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []store.AttendanceEvent
	for rows.Next() {
		var ev store.AttendanceEvent
		if err := rows.Scan(&ev.ID, &ev.PersonID, &ev.Kind, &ev.At); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

var _ store.AttendanceStore = (*AttendanceRepository)(nil)
