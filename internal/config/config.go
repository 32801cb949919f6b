package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// DepositRoot is the directory holding {user}/{repo}.git trees.
	DepositRoot   string
	GitBinary     string
	DefaultBranch string
	MaxPushSize   int64

	// StatsConcurrency bounds the git processes spawned per statistics request.
	StatsConcurrency int

	APIKey    string
	LogFormat string // "text" or "json"
	LogLevel  string

	StoreBackend string // "file" or "supabase"
	StoreFile    string
	SupabaseURL  string
	SupabaseKey  string

	NtfyBaseURL string
	NtfyTopic   string
}

// Load reads configuration from environment variables with defaults
func Load() *Config {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		ReadTimeout:      getDurationEnv("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:     getDurationEnv("WRITE_TIMEOUT", 5*time.Minute),
		DepositRoot:      getEnv("GIT_DEPOSIT_ROOT", "./deposit"),
		GitBinary:        getEnv("GIT_BINARY", "git"),
		DefaultBranch:    getEnv("GIT_DEFAULT_BRANCH", "main"),
		MaxPushSize:      int64(getIntEnv("MAX_PUSH_SIZE", 100*1024*1024)),
		StatsConcurrency: getIntEnv("STATS_CONCURRENCY", 8),
		APIKey:           getEnv("DEPOSIT_API_KEY", ""),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", "file")),
		StoreFile:        getEnv("STORE_FILE", "./deposit.yaml"),
		SupabaseURL:      strings.TrimSuffix(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseKey:      getEnv("SUPABASE_KEY", ""),
		NtfyBaseURL:      strings.TrimSuffix(getEnv("NTFY_BASE_URL", "https://ntfy.sh"), "/"),
		NtfyTopic:        getEnv("NTFY_TOPIC", ""),
	}

	if getBoolEnv("LOG_JSON", false) {
		cfg.LogFormat = "json"
	}

	return cfg
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
