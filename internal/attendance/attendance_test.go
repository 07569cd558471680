package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/kozaktomas/face-attendance/internal/store/memory"
	"github.com/rs/zerolog"
)

func enroll(t *testing.T, s *memory.Store, name string, start, end store.TimeOfDay, date time.Time) int64 {
	t.Helper()
	p, err := s.CreatePerson(context.Background(), name, []float32{1, 0, 0}, "arcface", store.WorkSchedule{
		Date:  date,
		Start: start,
		End:   end,
	})
	if err != nil {
		t.Fatalf("Failed to enroll %s: %v", name, err)
	}
	return p.ID
}

func at(t *testing.T, day, clock string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", day+" "+clock)
	if err != nil {
		t.Fatalf("Bad timestamp: %v", err)
	}
	return ts
}

func TestLedgerToggle(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	id := enroll(t, mem, "Alice", store.TimeOfDay{Hour: 9}, store.TimeOfDay{Hour: 18}, at(t, "2026-03-02", "00:00"))

	ledger := NewLedger(mem, 30*time.Second, zerolog.Nop())

	// First scan of the day checks in.
	ev, err := ledger.RecordCheck(ctx, id, at(t, "2026-03-02", "08:55"))
	if err != nil {
		t.Fatalf("RecordCheck failed: %v", err)
	}
	if ev.Kind != store.CheckIn {
		t.Fatalf("Expected 'in', got '%s'", ev.Kind)
	}
	if ev.Debounced {
		t.Error("First scan must not be debounced")
	}

	// Next scan outside the debounce window checks out.
	ev, err = ledger.RecordCheck(ctx, id, at(t, "2026-03-02", "17:30"))
	if err != nil {
		t.Fatalf("RecordCheck failed: %v", err)
	}
	if ev.Kind != store.CheckOut {
		t.Fatalf("Expected 'out', got '%s'", ev.Kind)
	}

	// And the one after toggles back to in.
	ev, err = ledger.RecordCheck(ctx, id, at(t, "2026-03-02", "18:10"))
	if err != nil {
		t.Fatalf("RecordCheck failed: %v", err)
	}
	if ev.Kind != store.CheckIn {
		t.Fatalf("Expected 'in', got '%s'", ev.Kind)
	}
}

func TestLedgerNewDayStartsWithIn(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	id := enroll(t, mem, "Alice", store.TimeOfDay{Hour: 9}, store.TimeOfDay{Hour: 18}, at(t, "2026-03-02", "00:00"))

	ledger := NewLedger(mem, 30*time.Second, zerolog.Nop())

	// Check in but never out on Monday.
	if _, err := ledger.RecordCheck(ctx, id, at(t, "2026-03-02", "09:00")); err != nil {
		t.Fatalf("RecordCheck failed: %v", err)
	}

	// Tuesday's first scan is an "in" regardless of Monday's open day.
	ev, err := ledger.RecordCheck(ctx, id, at(t, "2026-03-03", "08:58"))
	if err != nil {
		t.Fatalf("RecordCheck failed: %v", err)
	}
	if ev.Kind != store.CheckIn {
		t.Fatalf("Expected 'in' on new day, got '%s'", ev.Kind)
	}
}

func TestLedgerDebounce(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	id := enroll(t, mem, "Alice", store.TimeOfDay{Hour: 9}, store.TimeOfDay{Hour: 18}, at(t, "2026-03-02", "00:00"))
	other := enroll(t, mem, "Bob", store.TimeOfDay{Hour: 9}, store.TimeOfDay{Hour: 18}, at(t, "2026-03-02", "00:00"))

	ledger := NewLedger(mem, 30*time.Second, zerolog.Nop())

	first, err := ledger.RecordCheck(ctx, id, at(t, "2026-03-02", "09:00"))
	if err != nil {
		t.Fatalf("RecordCheck failed: %v", err)
	}

	// A repeat scan 5 seconds later returns the prior event, flagged.
	repeat, err := ledger.RecordCheck(ctx, id, first.At.Add(5*time.Second))
	if err != nil {
		t.Fatalf("RecordCheck failed: %v", err)
	}
	if !repeat.Debounced {
		t.Fatal("Expected debounced event")
	}
	if repeat.Kind != store.CheckIn || repeat.ID != first.ID {
		t.Errorf("Debounced scan must return the prior event, got %+v", repeat)
	}

	// The debounce is per person.
	evOther, err := ledger.RecordCheck(ctx, other, first.At.Add(5*time.Second))
	if err != nil {
		t.Fatalf("RecordCheck failed: %v", err)
	}
	if evOther.Debounced {
		t.Error("Another person must not be debounced")
	}

	// Past the window the toggle applies again.
	ev, err := ledger.RecordCheck(ctx, id, first.At.Add(31*time.Second))
	if err != nil {
		t.Fatalf("RecordCheck failed: %v", err)
	}
	if ev.Debounced || ev.Kind != store.CheckOut {
		t.Errorf("Expected fresh 'out' event, got %+v", ev)
	}

	// No persisted row for the debounced scan.
	events, err := mem.EventsOn(ctx, id, first.At)
	if err != nil {
		t.Fatalf("EventsOn failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("Expected 2 persisted events, got %d", len(events))
	}
}

func TestEvaluateLateness(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	day := at(t, "2026-03-02", "00:00")
	id := enroll(t, mem, "Alice", store.TimeOfDay{Hour: 9}, store.TimeOfDay{Hour: 18}, day)

	eval := NewEvaluator(mem)

	tests := []struct {
		name  string
		clock string
		want  Verdict
	}{
		{"well before start", "08:30", OnTime},
		{"minute before start", "08:59", OnTime},
		{"exactly at start", "09:00", OnTime},
		{"minute after start", "09:01", Late},
		{"late afternoon", "14:45", Late},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := eval.EvaluateLateness(ctx, id, at(t, "2026-03-02", tt.clock))
			if err != nil {
				t.Fatalf("EvaluateLateness failed: %v", err)
			}
			if a.Verdict != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, a.Verdict)
			}
			if a.Schedule.Start.String() != "09:00" {
				t.Errorf("Expected schedule start 09:00, got %s", a.Schedule.Start)
			}
		})
	}
}

func TestEvaluateLatenessDefaultSchedule(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	day := at(t, "2026-03-02", "00:00")
	id := enroll(t, mem, "Alice", store.TimeOfDay{Hour: 7}, store.TimeOfDay{Hour: 15}, day)

	eval := NewEvaluator(mem)

	// No schedule row for the next day: the default 09:00 window applies.
	a, err := eval.EvaluateLateness(ctx, id, at(t, "2026-03-03", "08:30"))
	if err != nil {
		t.Fatalf("EvaluateLateness failed: %v", err)
	}
	if a.Verdict != OnTime {
		t.Errorf("Expected on time against default window, got %s", a.Verdict)
	}
	if a.Schedule.Start != store.DefaultSchedule.Start || a.Schedule.End != store.DefaultSchedule.End {
		t.Errorf("Expected default schedule, got %s-%s", a.Schedule.Start, a.Schedule.End)
	}

	a, err = eval.EvaluateLateness(ctx, id, at(t, "2026-03-03", "09:30"))
	if err != nil {
		t.Fatalf("EvaluateLateness failed: %v", err)
	}
	if a.Verdict != Late {
		t.Errorf("Expected late against default window, got %s", a.Verdict)
	}
}
