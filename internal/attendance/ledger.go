// Package attendance owns the check-in/check-out ledger and the
// on-time/late verdict for arrivals.
package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/rs/zerolog"
)

// Ledger applies the toggle rule to the append-only event log. Consecutive
// events for a person on one day alternate, starting with "in".
type Ledger struct {
	events   store.AttendanceStore
	debounce time.Duration
	log      zerolog.Logger

	mu       sync.Mutex
	lastSeen map[int64]*store.AttendanceEvent
}

// NewLedger creates an attendance ledger. A repeat scan of the same person
// within the debounce window returns the prior event flagged as Debounced
// instead of toggling again.
func NewLedger(events store.AttendanceStore, debounce time.Duration, log zerolog.Logger) *Ledger {
	return &Ledger{
		events:   events,
		debounce: debounce,
		log:      log.With().Str("component", "ledger").Logger(),
		lastSeen: make(map[int64]*store.AttendanceEvent),
	}
}

// RecordCheck appends the next event for the person at the given time and
// returns it with its kind for display.
func (l *Ledger) RecordCheck(ctx context.Context, personID int64, at time.Time) (*store.AttendanceEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if prior := l.lastSeen[personID]; prior != nil && at.Sub(prior.At) < l.debounce && at.After(prior.At) {
		l.log.Debug().Int64("person_id", personID).Msg("scan debounced")
		debounced := *prior
		debounced.Debounced = true
		return &debounced, nil
	}

	latest, err := l.events.LatestEventOn(ctx, personID, at)
	if err != nil {
		return nil, fmt.Errorf("looking up latest event: %w", err)
	}

	kind := store.CheckIn
	if latest != nil && latest.Kind == store.CheckIn {
		kind = store.CheckOut
	}

	event, err := l.events.AppendEvent(ctx, store.AttendanceEvent{
		PersonID: personID,
		Kind:     kind,
		At:       at,
	})
	if err != nil {
		return nil, fmt.Errorf("appending event: %w", err)
	}

	l.lastSeen[personID] = event
	l.log.Info().
		Int64("person_id", personID).
		Str("kind", string(kind)).
		Time("at", at).
		Msg("attendance recorded")

	return event, nil
}
