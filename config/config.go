package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the field sync agent
type Config struct {
	// HTTP configuration
	Port string

	// Local queue configuration
	QueuePath string

	// Remote store configuration
	RemoteBaseURL  string
	RemoteAPIKey   string
	EvidenceBucket string

	// Sync configuration
	SyncInterval  time.Duration
	ProbeInterval time.Duration
	SuccessHold   time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	config := &Config{
		Port: getEnv("PORT", "8080"),

		QueuePath: getEnv("QUEUE_PATH", "fieldsync.db"),

		RemoteBaseURL:  getEnv("REMOTE_BASE_URL", "http://localhost:54321"),
		RemoteAPIKey:   getEnv("REMOTE_API_KEY", ""),
		EvidenceBucket: getEnv("EVIDENCE_BUCKET", "incidents"),

		// Sync defaults: drain every 30s, probe reachability every 10s,
		// show a success outcome for 5s before reverting to neutral.
		SyncInterval:  getDurationEnv("SYNC_INTERVAL", 30*time.Second),
		ProbeInterval: getDurationEnv("PROBE_INTERVAL", 10*time.Second),
		SuccessHold:   getDurationEnv("SUCCESS_HOLD", 5*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return config
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
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
