package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/rs/zerolog"
)

// Entry is one row of the deletion listing.
type Entry struct {
	Person    store.Person
	CheckedIn bool
}

// Listing is one page of filtered entries.
type Listing struct {
	Entries []Entry
	// Page is the zero-based page that was returned. Out-of-range
	// requests clamp to the last page.
	Page       int
	TotalPages int
	Total      int
}

// DeletionManager lists enrolled persons with their current check-in state
// and performs cascading deletes.
type DeletionManager struct {
	reader   store.PersonReader
	writer   store.PersonWriter
	events   store.AttendanceStore
	pageSize int
	log      zerolog.Logger
}

// NewDeletionManager creates a deletion manager.
func NewDeletionManager(reader store.PersonReader, writer store.PersonWriter, events store.AttendanceStore, pageSize int, log zerolog.Logger) *DeletionManager {
	if pageSize <= 0 {
		pageSize = 8
	}
	return &DeletionManager{
		reader:   reader,
		writer:   writer,
		events:   events,
		pageSize: pageSize,
		log:      log.With().Str("component", "deletion").Logger(),
	}
}

// List returns one page of enrolled persons whose name contains the filter,
// compared case-insensitively and ignoring diacritics. Names come back in
// the store's alphabetical order; CheckedIn reflects today's latest event.
func (m *DeletionManager) List(ctx context.Context, filter string, page int) (*Listing, error) {
	persons, err := m.reader.ListPersons(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing persons: %w", err)
	}

	needle := normalizeForFilter(strings.TrimSpace(filter))
	var matched []store.Person
	for _, p := range persons {
		if needle == "" || strings.Contains(normalizeForFilter(p.Name), needle) {
			matched = append(matched, p)
		}
	}

	totalPages := (len(matched) + m.pageSize - 1) / m.pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 0 {
		page = 0
	}
	if page >= totalPages {
		page = totalPages - 1
	}

	lo := page * m.pageSize
	hi := lo + m.pageSize
	if hi > len(matched) {
		hi = len(matched)
	}

	now := time.Now()
	entries := make([]Entry, 0, hi-lo)
	for _, p := range matched[lo:hi] {
		latest, err := m.events.LatestEventOn(ctx, p.ID, now)
		if err != nil {
			return nil, fmt.Errorf("checking attendance for %q: %w", p.Name, err)
		}
		entries = append(entries, Entry{
			Person:    p,
			CheckedIn: latest != nil && latest.Kind == store.CheckIn,
		})
	}

	return &Listing{
		Entries:    entries,
		Page:       page,
		TotalPages: totalPages,
		Total:      len(matched),
	}, nil
}

// Delete removes the person together with all schedule, attendance and
// embedding rows in one atomic operation.
func (m *DeletionManager) Delete(ctx context.Context, name string) error {
	if err := m.writer.DeletePerson(ctx, name); err != nil {
		return err
	}
	m.log.Info().Str("name", name).Msg("deleted")
	return nil
}
