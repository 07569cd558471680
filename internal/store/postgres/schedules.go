package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
)

// ScheduleRepository provides PostgreSQL-backed work schedule storage.
type ScheduleRepository struct {
	pool *Pool
}

// NewScheduleRepository creates a new PostgreSQL schedule repository.
func NewScheduleRepository(pool *Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// ScheduleOn returns the schedule for the person on the day of at,
// or nil when no row exists for that day.
func (r *ScheduleRepository) ScheduleOn(ctx context.Context, personID int64, at time.Time) (*store.WorkSchedule, error) {
	var startRaw, endRaw string
	err := r.pool.QueryRow(ctx, `
		SELECT start_time, end_time
		FROM work_schedules
		WHERE person_id = $1 AND work_date = $2::date
	`, personID, store.DayOf(at)).Scan(&startRaw, &endRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query schedule: %w", err)
	}

	// TIME columns come back as HH:MM:SS text.
	start, err := store.ParseTimeOfDay(startRaw)
	if err != nil {
		return nil, fmt.Errorf("parse start time %q: %w", startRaw, err)
	}
	end, err := store.ParseTimeOfDay(endRaw)
	if err != nil {
		return nil, fmt.Errorf("parse end time %q: %w", endRaw, err)
	}

	return &store.WorkSchedule{
		PersonID: personID,
		Date:     at,
		Start:    start,
		End:      end,
	}, nil
}

// SaveSchedule upserts the schedule row for the person and day.
func (r *ScheduleRepository) SaveSchedule(ctx context.Context, schedule store.WorkSchedule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO work_schedules (person_id, work_date, start_time, end_time)
		VALUES ($1, $2::date, $3, $4)
		ON CONFLICT (person_id, work_date)
		DO UPDATE SET start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time
	`, schedule.PersonID, store.DayOf(schedule.Date), schedule.Start.String(), schedule.End.String())
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

var _ store.ScheduleStore = (*ScheduleRepository)(nil)
