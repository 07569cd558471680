//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/store"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testEmbedding(seed int) []float32 {
	emb := make([]float32, 512)
	for i := range emb {
		emb[i] = float32(i+seed) / 512.0
	}
	return store.Normalize(emb)
}

func testSchedule(at time.Time) store.WorkSchedule {
	return store.WorkSchedule{
		Date:  at,
		Start: store.TimeOfDay{Hour: 9},
		End:   store.TimeOfDay{Hour: 18},
	}
}

func TestPersonRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewPersonRepository(pool, zerolog.Nop())
	now := time.Now()

	t.Run("CreateAndGet", func(t *testing.T) {
		p, err := repo.CreatePerson(ctx, "Alice", testEmbedding(0), "arcface", testSchedule(now))
		if err != nil {
			t.Fatalf("Failed to create person: %v", err)
		}
		if p.Name != "Alice" {
			t.Errorf("Expected name 'Alice', got '%s'", p.Name)
		}

		got, err := repo.GetPerson(ctx, "Alice")
		if err != nil {
			t.Fatalf("Failed to get person: %v", err)
		}
		if got.ID != p.ID {
			t.Errorf("Expected id %d, got %d", p.ID, got.ID)
		}
	})

	t.Run("DuplicateName", func(t *testing.T) {
		_, err := repo.CreatePerson(ctx, "Alice", testEmbedding(1), "arcface", testSchedule(now))
		if !errors.Is(err, store.ErrDuplicateName) {
			t.Errorf("Expected ErrDuplicateName, got %v", err)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := repo.GetPerson(ctx, "nobody")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("TopK", func(t *testing.T) {
		if _, err := repo.CreatePerson(ctx, "Bob", testEmbedding(50), "arcface", testSchedule(now)); err != nil {
			t.Fatalf("Failed to create person: %v", err)
		}

		neighbors, err := repo.TopK(ctx, testEmbedding(0), 2)
		if err != nil {
			t.Fatalf("Failed to search: %v", err)
		}
		if len(neighbors) != 2 {
			t.Fatalf("Expected 2 neighbors, got %d", len(neighbors))
		}
		if neighbors[0].Name != "Alice" {
			t.Errorf("Expected best match 'Alice', got '%s'", neighbors[0].Name)
		}
		if neighbors[0].Similarity < neighbors[1].Similarity {
			t.Error("Neighbors not sorted by similarity")
		}
		if neighbors[0].Similarity < 0.99 {
			t.Errorf("Expected near-perfect self match, got %f", neighbors[0].Similarity)
		}
	})

	t.Run("Rename", func(t *testing.T) {
		if err := repo.RenamePerson(ctx, "Bob", "Robert"); err != nil {
			t.Fatalf("Failed to rename: %v", err)
		}
		if _, err := repo.GetPerson(ctx, "Robert"); err != nil {
			t.Errorf("Renamed person not found: %v", err)
		}
		if err := repo.RenamePerson(ctx, "nobody", "x"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if err := repo.RenamePerson(ctx, "Robert", "Alice"); !errors.Is(err, store.ErrDuplicateName) {
			t.Errorf("Expected ErrDuplicateName, got %v", err)
		}
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		p, err := repo.GetPerson(ctx, "Robert")
		if err != nil {
			t.Fatalf("Failed to get person: %v", err)
		}

		att := NewAttendanceRepository(pool)
		if _, err := att.AppendEvent(ctx, store.AttendanceEvent{PersonID: p.ID, Kind: store.CheckIn, At: now}); err != nil {
			t.Fatalf("Failed to append event: %v", err)
		}

		if err := repo.DeletePerson(ctx, "Robert"); err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if _, err := repo.GetPerson(ctx, "Robert"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}

		ev, err := att.LatestEventOn(ctx, p.ID, now)
		if err != nil {
			t.Fatalf("Failed to query events: %v", err)
		}
		if ev != nil {
			t.Error("Expected attendance rows to be deleted")
		}

		embs, err := repo.GetAllEmbeddings(ctx)
		if err != nil {
			t.Fatalf("Failed to load embeddings: %v", err)
		}
		for _, e := range embs {
			if e.PersonID == p.ID {
				t.Error("Expected embeddings to be deleted")
			}
		}
	})

	t.Run("EnableHNSW", func(t *testing.T) {
		if err := repo.EnableHNSW(ctx, ""); err != nil {
			t.Fatalf("Failed to enable HNSW: %v", err)
		}
		neighbors, err := repo.TopK(ctx, testEmbedding(0), 1)
		if err != nil {
			t.Fatalf("Failed to search via HNSW: %v", err)
		}
		if len(neighbors) != 1 || neighbors[0].Name != "Alice" {
			t.Errorf("Expected HNSW match 'Alice', got %+v", neighbors)
		}
	})
}

func TestScheduleRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	persons := NewPersonRepository(pool, zerolog.Nop())
	repo := NewScheduleRepository(pool)
	now := time.Now()

	p, err := persons.CreatePerson(ctx, "Carol", testEmbedding(7), "arcface", testSchedule(now))
	if err != nil {
		t.Fatalf("Failed to create person: %v", err)
	}

	t.Run("ScheduleOnToday", func(t *testing.T) {
		sched, err := repo.ScheduleOn(ctx, p.ID, now)
		if err != nil {
			t.Fatalf("Failed to query schedule: %v", err)
		}
		if sched == nil {
			t.Fatal("Expected schedule, got nil")
		}
		if sched.Start.String() != "09:00" || sched.End.String() != "18:00" {
			t.Errorf("Unexpected schedule %s-%s", sched.Start, sched.End)
		}
	})

	t.Run("ScheduleOnMissingDay", func(t *testing.T) {
		sched, err := repo.ScheduleOn(ctx, p.ID, now.AddDate(0, 0, 1))
		if err != nil {
			t.Fatalf("Failed to query schedule: %v", err)
		}
		if sched != nil {
			t.Errorf("Expected nil for day without schedule, got %+v", sched)
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		err := repo.SaveSchedule(ctx, store.WorkSchedule{
			PersonID: p.ID,
			Date:     now,
			Start:    store.TimeOfDay{Hour: 10, Minute: 30},
			End:      store.TimeOfDay{Hour: 19},
		})
		if err != nil {
			t.Fatalf("Failed to upsert schedule: %v", err)
		}

		sched, err := repo.ScheduleOn(ctx, p.ID, now)
		if err != nil {
			t.Fatalf("Failed to query schedule: %v", err)
		}
		if sched.Start.String() != "10:30" {
			t.Errorf("Expected start 10:30, got %s", sched.Start)
		}
	})
}

func TestAttendanceRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	persons := NewPersonRepository(pool, zerolog.Nop())
	repo := NewAttendanceRepository(pool)
	now := time.Now()

	p, err := persons.CreatePerson(ctx, "Dan", testEmbedding(3), "arcface", testSchedule(now))
	if err != nil {
		t.Fatalf("Failed to create person: %v", err)
	}

	t.Run("EmptyDay", func(t *testing.T) {
		ev, err := repo.LatestEventOn(ctx, p.ID, now)
		if err != nil {
			t.Fatalf("Failed to query latest event: %v", err)
		}
		if ev != nil {
			t.Errorf("Expected nil, got %+v", ev)
		}
	})

	t.Run("AppendAndLatest", func(t *testing.T) {
		in, err := repo.AppendEvent(ctx, store.AttendanceEvent{PersonID: p.ID, Kind: store.CheckIn, At: now.Add(-time.Hour)})
		if err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
		if in.Kind != store.CheckIn {
			t.Errorf("Expected kind 'in', got '%s'", in.Kind)
		}

		if _, err := repo.AppendEvent(ctx, store.AttendanceEvent{PersonID: p.ID, Kind: store.CheckOut, At: now}); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}

		latest, err := repo.LatestEventOn(ctx, p.ID, now)
		if err != nil {
			t.Fatalf("Failed to query latest event: %v", err)
		}
		if latest == nil || latest.Kind != store.CheckOut {
			t.Errorf("Expected latest kind 'out', got %+v", latest)
		}
	})

	t.Run("EventsOnOrdered", func(t *testing.T) {
		events, err := repo.EventsOn(ctx, p.ID, now)
		if err != nil {
			t.Fatalf("Failed to query events: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("Expected 2 events, got %d", len(events))
		}
		if events[0].Kind != store.CheckIn || events[1].Kind != store.CheckOut {
			t.Error("Events not ordered oldest first")
		}
	})

	t.Run("DayBoundaryUsesKioskClock", func(t *testing.T) {
		// 23:00 and next-day 01:00 in UTC+13 fall on the same UTC date;
		// the day split must still follow the kiosk's local calendar.
		zone := time.FixedZone("UTC+13", 13*60*60)
		lateNight := time.Date(2025, 3, 1, 23, 0, 0, 0, zone)
		earlyMorning := time.Date(2025, 3, 2, 1, 0, 0, 0, zone)

		if _, err := repo.AppendEvent(ctx, store.AttendanceEvent{PersonID: p.ID, Kind: store.CheckIn, At: lateNight}); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
		if _, err := repo.AppendEvent(ctx, store.AttendanceEvent{PersonID: p.ID, Kind: store.CheckOut, At: earlyMorning}); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}

		events, err := repo.EventsOn(ctx, p.ID, earlyMorning)
		if err != nil {
			t.Fatalf("Failed to query events: %v", err)
		}
		if len(events) != 1 || events[0].Kind != store.CheckOut {
			t.Fatalf("Expected only the morning event on the second day, got %+v", events)
		}

		latest, err := repo.LatestEventOn(ctx, p.ID, lateNight)
		if err != nil {
			t.Fatalf("Failed to query latest event: %v", err)
		}
		if latest == nil || latest.Kind != store.CheckIn {
			t.Errorf("Expected the late-night check-in on the first day, got %+v", latest)
		}
	})
}
