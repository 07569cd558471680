package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
)

// Verdict is the arrival assessment for a check-in.
type Verdict int

const (
	OnTime Verdict = iota
	Late
)

func (v Verdict) String() string {
	if v == Late {
		return "late"
	}
	return "on time"
}

// Assessment pairs the verdict with the schedule window it was judged
// against, so the result screen can show the expected times.
type Assessment struct {
	Verdict  Verdict
	Schedule store.WorkSchedule
}

// Evaluator resolves a person's schedule for a date and judges arrivals
// against it at minute granularity.
type Evaluator struct {
	schedules store.ScheduleStore
}

// NewEvaluator creates a schedule evaluator.
func NewEvaluator(schedules store.ScheduleStore) *Evaluator {
	return &Evaluator{schedules: schedules}
}

// ScheduleFor returns the person's schedule on the date of at, falling back
// to the default 09:00-18:00 window when no row exists.
func (e *Evaluator) ScheduleFor(ctx context.Context, personID int64, at time.Time) (store.WorkSchedule, error) {
	sched, err := e.schedules.ScheduleOn(ctx, personID, at)
	if err != nil {
		return store.WorkSchedule{}, fmt.Errorf("resolving schedule: %w", err)
	}
	if sched == nil {
		return store.WorkSchedule{
			PersonID: personID,
			Date:     at,
			Start:    store.DefaultSchedule.Start,
			End:      store.DefaultSchedule.End,
		}, nil
	}
	return *sched, nil
}

// EvaluateLateness judges a check-in. Arriving at or before the scheduled
// start minute is OnTime; strictly after is Late. Only meaningful for
// check-ins, never called for check-outs.
func (e *Evaluator) EvaluateLateness(ctx context.Context, personID int64, checkIn time.Time) (*Assessment, error) {
	sched, err := e.ScheduleFor(ctx, personID, checkIn)
	if err != nil {
		return nil, err
	}

	verdict := OnTime
	if sched.Start.Before(store.MinuteOf(checkIn)) {
		verdict = Late
	}

	return &Assessment{Verdict: verdict, Schedule: sched}, nil
}
