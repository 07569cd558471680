package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed calibration.yaml
var calibrationYAML []byte

type Config struct {
	Database DatabaseConfig
	Vision   VisionConfig
	Matcher  MatcherConfig
	Kiosk    KioskConfig
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the HNSW index (optional, if empty index is rebuilt on startup)
}

type VisionConfig struct {
	DetectorURL   string  // face detector service, defaults to http://localhost:8001
	ExtractorURL  string  // embedding extractor service, defaults to http://localhost:8000
	CameraURL     string  // camera snapshot endpoint (e.g., http://camera/snapshot.jpg)
	Model         string  // embedding model name, defaults to arcface
	Dim           int     // embedding dimension, defaults to 512
	MinConfidence float64 // minimum detector confidence, defaults to 0.7
}

type MatcherConfig struct {
	MatchThreshold  float64 // minimum cosine similarity to accept a match
	AmbiguityMargin float64 // minimum top-1/top-2 gap to accept without disambiguation
}

type KioskConfig struct {
	AdminPasswordHash string        // bcrypt hash of the shared admin secret
	AdminPassword     string        // plaintext fallback (dev only)
	Dwell             time.Duration // auto-return delay on result screens (default 3s)
	Debounce          time.Duration // per-person rescan window (default 30s, 0 disables)
	FrameInterval     time.Duration // delay between frame grabs while scanning (default 200ms)
	PageSize          int           // entries per page on the deletion screen (default 8)
}

// CalibrationConfig holds per-model similarity presets loaded from the
// embedded calibration.yaml.
type CalibrationConfig struct {
	Models map[string]ModelCalibration `yaml:"models"`
}

type ModelCalibration struct {
	MatchThreshold  float64 `yaml:"match_threshold"`
	AmbiguityMargin float64 `yaml:"ambiguity_margin"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envStr reads an environment variable with a default.
func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envMillis reads an environment variable as a number of milliseconds.
func envMillis(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return time.Duration(n) * time.Millisecond
	}
	return defaultVal
}

func Load() *Config {
	var calibration CalibrationConfig
	if err := yaml.Unmarshal(calibrationYAML, &calibration); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded calibration.yaml: " + err.Error())
	}

	model := envStr("EMBEDDING_MODEL", "arcface")

	// Calibrated defaults for the configured model; env vars win.
	preset := calibration.Models[model]
	if preset.MatchThreshold == 0 {
		preset.MatchThreshold = 0.45
	}
	if preset.AmbiguityMargin == 0 {
		preset.AmbiguityMargin = 0.05
	}

	return &Config{
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Vision: VisionConfig{
			DetectorURL:   envStr("DETECTOR_URL", "http://localhost:8001"),
			ExtractorURL:  envStr("EMBEDDING_URL", "http://localhost:8000"),
			CameraURL:     os.Getenv("CAMERA_URL"),
			Model:         model,
			Dim:           envInt("EMBEDDING_DIM", 512),
			MinConfidence: envFloat("DETECTOR_MIN_CONFIDENCE", 0.7),
		},
		Matcher: MatcherConfig{
			MatchThreshold:  envFloat("MATCH_THRESHOLD", preset.MatchThreshold),
			AmbiguityMargin: envFloat("AMBIGUITY_MARGIN", preset.AmbiguityMargin),
		},
		Kiosk: KioskConfig{
			AdminPasswordHash: os.Getenv("KIOSK_ADMIN_PASSWORD_HASH"),
			AdminPassword:     os.Getenv("KIOSK_ADMIN_PASSWORD"),
			Dwell:             envMillis("KIOSK_DWELL_MS", 3*time.Second),
			Debounce:          envMillis("KIOSK_DEBOUNCE_MS", 30*time.Second),
			FrameInterval:     envMillis("KIOSK_FRAME_INTERVAL_MS", 200*time.Millisecond),
			PageSize:          envInt("KIOSK_PAGE_SIZE", 8),
		},
	}
}
