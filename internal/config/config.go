// Package config loads pipeline configuration from environment variables
// and the optional validation-rules file, and sets up logging.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lkoehler/docintake-go/internal/telemetry"
)

// Config holds all configuration values.
type Config struct {
	// Document backend
	ServerURL string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Staging
	RulesFile      string
	MaxStagedFiles int
	MaxFileMB      int

	// Selection queue
	MaxQueueDepth  int
	QueueWarnDepth int

	// Alerting
	SlowBatchMs          int
	AlertCooldownQueueMs int
	AlertCooldownSlowMs  int
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		ServerURL: getEnv("DOCINTAKE_SERVER_URL", "http://localhost:8710"),

		LogFile:  getEnv("DOCINTAKE_LOG_FILE", "/tmp/docintake.log"),
		LogLevel: parseLogLevel(getEnv("DOCINTAKE_LOG_LEVEL", "INFO")),

		RulesFile:      getEnv("DOCINTAKE_RULES_FILE", ""),
		MaxStagedFiles: getEnvInt("DOCINTAKE_MAX_STAGED", 1000),
		MaxFileMB:      getEnvInt("DOCINTAKE_MAX_FILE_MB", 50),

		MaxQueueDepth:  getEnvInt("DOCINTAKE_QUEUE_DEPTH", 5),
		QueueWarnDepth: getEnvInt("DOCINTAKE_QUEUE_WARN", 3),

		SlowBatchMs:          getEnvInt("DOCINTAKE_SLOW_BATCH_MS", 3000),
		AlertCooldownQueueMs: getEnvInt("DOCINTAKE_ALERT_COOLDOWN_QUEUE_MS", 30000),
		AlertCooldownSlowMs:  getEnvInt("DOCINTAKE_ALERT_COOLDOWN_SLOW_MS", 60000),
	}
}

// SlowBatchThreshold returns the slow-batch alert threshold as a duration.
func (c Config) SlowBatchThreshold() time.Duration {
	return time.Duration(c.SlowBatchMs) * time.Millisecond
}

// AlertCooldowns returns the per-kind alert cooldown windows.
func (c Config) AlertCooldowns() map[telemetry.AlertKind]time.Duration {
	return map[telemetry.AlertKind]time.Duration{
		telemetry.AlertQueueSpike: time.Duration(c.AlertCooldownQueueMs) * time.Millisecond,
		telemetry.AlertSlowChunk:  time.Duration(c.AlertCooldownSlowMs) * time.Millisecond,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
