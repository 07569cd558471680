package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/identity"
	"github.com/kozaktomas/face-attendance/internal/roster"
	"github.com/kozaktomas/face-attendance/internal/store/postgres"
	"github.com/kozaktomas/face-attendance/internal/vision"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face recognition attendance terminal",
	Long: `Face Attendance is a kiosk that records employee check-ins and
check-outs by face recognition. It matches camera frames against enrolled
face embeddings stored in PostgreSQL with pgvector and keeps an append-only
attendance log with per-day work schedules.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && l != zerolog.NoLevel {
		level = l
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

// app bundles the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	pool     *postgres.Pool
	persons  *postgres.PersonRepository
	schedule *postgres.ScheduleRepository
	events   *postgres.AttendanceRepository
	pipeline *vision.Pipeline
}

// newApp connects to the store and wires the shared components. A failed
// connection is fatal before any loop starts.
func newApp() (*app, error) {
	cfg := config.Load()
	log := newLogger()

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to store: %w", err)
	}

	detector := vision.NewDetectorClient(cfg.Vision.DetectorURL)
	extractor := vision.NewExtractorClient(cfg.Vision.ExtractorURL, cfg.Vision.Model)

	return &app{
		cfg:      cfg,
		log:      log,
		pool:     pool,
		persons:  postgres.NewPersonRepository(pool, log),
		schedule: postgres.NewScheduleRepository(pool),
		events:   postgres.NewAttendanceRepository(pool),
		pipeline: vision.NewPipeline(detector, extractor, cfg.Vision.MinConfidence, cfg.Vision.Dim, log),
	}, nil
}

func (a *app) Close() {
	if err := a.pool.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing store")
	}
}

func (a *app) resolver() *identity.Resolver {
	return identity.NewResolver(a.persons, a.cfg.Matcher.MatchThreshold, a.cfg.Matcher.AmbiguityMargin, a.log)
}

func (a *app) ledger() *attendance.Ledger {
	return attendance.NewLedger(a.events, a.cfg.Kiosk.Debounce, a.log)
}

func (a *app) enrollment() *roster.EnrollmentManager {
	return roster.NewEnrollmentManager(a.persons, a.pipeline, a.log)
}

func (a *app) deletion() *roster.DeletionManager {
	return roster.NewDeletionManager(a.persons, a.persons, a.events, a.cfg.Kiosk.PageSize, a.log)
}
