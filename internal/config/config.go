package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string

	// DataDir is the root of the durable store (one file per key).
	DataDir string
	// MaxStorageBytes caps aggregate store usage (quota).
	MaxStorageBytes int64
	// EvictThreshold is the usage ratio that triggers proactive eviction.
	EvictThreshold float64
	// KeepSessions / KeepResults bound the capped key categories.
	KeepSessions int
	KeepResults  int

	AutosaveInterval time.Duration
	MaxHistorySize   int

	// SyncURL is the remote sync target for queued actions. Empty means
	// the app runs permanently offline and the queue only buffers.
	SyncURL      string
	SyncInterval time.Duration
	MaxRetries   int
	RetryBase    time.Duration
	RetryCap     time.Duration

	// ExamsDir is scanned for *.md exam files on startup. Optional.
	ExamsDir string

	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // Ignore error — .env is optional

	return &Config{
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		GinMode:          getEnv("GIN_MODE", "debug"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "pretty"),
		DataDir:          getEnv("DATA_DIR", "./data"),
		MaxStorageBytes:  int64(getEnvInt("MAX_STORAGE_MB", 5)) * 1024 * 1024,
		EvictThreshold:   getEnvFloat("EVICT_THRESHOLD", 0.8),
		KeepSessions:     getEnvInt("KEEP_SESSIONS", 10),
		KeepResults:      getEnvInt("KEEP_RESULTS", 50),
		AutosaveInterval: time.Duration(getEnvInt("AUTOSAVE_SECONDS", 5)) * time.Second,
		MaxHistorySize:   getEnvInt("MAX_HISTORY_SIZE", 50),
		SyncURL:          getEnv("SYNC_URL", ""),
		SyncInterval:     time.Duration(getEnvInt("SYNC_INTERVAL_SECONDS", 30)) * time.Second,
		MaxRetries:       getEnvInt("SYNC_MAX_RETRIES", 3),
		RetryBase:        time.Duration(getEnvInt("SYNC_RETRY_BASE_MS", 1000)) * time.Millisecond,
		RetryCap:         time.Duration(getEnvInt("SYNC_RETRY_CAP_MS", 30000)) * time.Millisecond,
		ExamsDir:         getEnv("EXAMS_DIR", ""),
		AllowedOrigins:   parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
