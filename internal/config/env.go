package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/local/pagecomposer/internal/compositor"
	"github.com/local/pagecomposer/internal/raster"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ComposeConfig defines the page layout defaults applied when a request
// does not override them.
type ComposeConfig struct {
	DPI                 int
	MinScale            float64
	MaxScale            float64
	PreserveAspectRatio bool
	AddMargin           bool
	AutoFit             bool
	Format              string
}

// Options converts the configured defaults into compositor options.
func (c ComposeConfig) Options() compositor.Options {
	return compositor.Options{
		PreserveAspectRatio: c.PreserveAspectRatio,
		AddMargin:           c.AddMargin,
		AutoFit:             c.AutoFit,
		DPI:                 c.DPI,
		MinScale:            c.MinScale,
		MaxScale:            c.MaxScale,
	}
}

// WorkerConfig defines worker behavior and limits.
type WorkerConfig struct {
	Concurrency int
	JobTimeout  time.Duration
}

// OutputConfig defines where composed files land.
type OutputConfig struct {
	Dir string
}

// StoreConfig defines batch-status store connectivity. An empty RedisURL
// selects the in-memory store.
type StoreConfig struct {
	RedisURL string
	TTL      time.Duration
}

// S3Config defines the upload target for finished batches.
type S3Config struct {
	Bucket             string
	Region             string
	Prefix             string
	EncryptionPassword string
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Addr         string
	AuthPassword string
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Compose ComposeConfig
	Worker  WorkerConfig
	Output  OutputConfig
	Store   StoreConfig
	S3      S3Config
	Server  ServerConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pagecomposer.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pagecomposer",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// Compose defaults
	cfg.Compose = ComposeConfig{
		DPI:                 clampInt(parseInt(getEnv("COMPOSE_DPI", "200"), 200), raster.MinDPI, raster.MaxDPI),
		MinScale:            parseFloat(getEnv("COMPOSE_MIN_SCALE", "0.7"), 0.7),
		MaxScale:            parseFloat(getEnv("COMPOSE_MAX_SCALE", "1.0"), 1.0),
		PreserveAspectRatio: parseBool(getEnv("COMPOSE_PRESERVE_ASPECT", "true")),
		AddMargin:           parseBool(getEnv("COMPOSE_ADD_MARGIN", "true")),
		AutoFit:             parseBool(getEnv("COMPOSE_AUTO_FIT", "true")),
		Format:              strings.ToLower(getEnv("COMPOSE_FORMAT", "pdf")),
	}
	if cfg.Compose.MinScale > cfg.Compose.MaxScale {
		cfg.Compose.MinScale = cfg.Compose.MaxScale
	}

	// Worker defaults
	cfg.Worker = WorkerConfig{
		Concurrency: parseInt(getEnv("WORKER_CONCURRENCY", "0"), 0),
		JobTimeout:  parseDuration(getEnv("JOB_TIMEOUT", "120s"), 120*time.Second),
	}

	// Output defaults
	cfg.Output = OutputConfig{
		Dir: getEnv("OUTPUT_DIR", "output"),
	}

	// Store defaults
	cfg.Store = StoreConfig{
		RedisURL: getEnv("REDIS_URL", ""),
		TTL:      parseDuration(getEnv("STORE_TTL", "24h"), 24*time.Hour),
	}

	// S3 defaults
	cfg.S3 = S3Config{
		Bucket:             getEnv("S3_BUCKET", ""),
		Region:             getEnv("AWS_REGION", "us-east-1"),
		Prefix:             getEnv("S3_PREFIX", "composed"),
		EncryptionPassword: getEnv("FILE_ENCRYPTION_PASSWORD", ""),
	}

	// Server defaults
	cfg.Server = ServerConfig{
		Addr:         getEnv("LISTEN_ADDR", ":8080"),
		AuthPassword: getEnv("WEB_AUTH_PASSWORD", ""),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
