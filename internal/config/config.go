package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	XrefAPIKey string

	// Status store. Publishing is disabled when the API key is empty.
	PathstoreURL    string
	PathstoreAPIKey string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Build state. The on-disk archive is disabled when ArchiveDir is empty.
	BuildTTL   time.Duration
	ArchiveDir string
	ArchiveTTL time.Duration

	// Resolution hints
	HintsFile          string
	MinParagraphLength int
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		XrefAPIKey: os.Getenv("XREF_API_KEY"),

		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 20971520), // 20MB

		BuildTTL:   envDuration("BUILD_TTL", 1*time.Hour),
		ArchiveDir: os.Getenv("ARCHIVE_DIR"),
		ArchiveTTL: envDuration("ARCHIVE_TTL", 7*24*time.Hour),

		HintsFile:          os.Getenv("XREF_HINTS_FILE"),
		MinParagraphLength: envInt("MIN_PARAGRAPH_LENGTH", 40),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20971520
	}
	if cfg.BuildTTL <= 0 {
		cfg.BuildTTL = 1 * time.Hour
	}
	if cfg.ArchiveTTL < 0 {
		cfg.ArchiveTTL = 0
	}
	if cfg.MinParagraphLength <= 0 {
		cfg.MinParagraphLength = 40
	}

	return cfg
}

func (c Config) Validate() error {
	if c.XrefAPIKey == "" {
		return fmt.Errorf("XREF_API_KEY is required")
	}
	return nil
}

// PublishEnabled reports whether build status goes to the pathstore.
func (c Config) PublishEnabled() bool {
	return c.PathstoreAPIKey != ""
}

// ArchiveEnabled reports whether finished builds are kept on disk.
func (c Config) ArchiveEnabled() bool {
	return c.ArchiveDir != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
