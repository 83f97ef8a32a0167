package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Kafka
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroupID  string
	KafkaDLQTopic string

	// Database
	DatabaseURL string

	// Redis (optional duplicate fast-path cache)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DedupTTL      time.Duration

	// Artifacts
	ExportPath       string
	ReportSchemaPath string

	// Notification
	NotificationURL   string
	OAuthTokenURL     string
	OAuthClientID     string
	OAuthClientSecret string

	// Processing
	WorkerCount       int
	MaxAttempts       int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RequestTimeout    time.Duration

	// Observability
	MetricsListenAddr string
	LogLevel          string
}

// Load reads the process environment once at startup. A missing required
// variable is a startup error, never a runtime one.
func Load() (*Config, error) {
	cfg := &Config{
		KafkaGroupID:  getEnv("KAFKA_GROUP_ID", "excel-export-worker"),
		KafkaDLQTopic: getEnv("KAFKA_DLQ_TOPIC", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		DedupTTL:      getDuration("DEDUP_TTL", 24*time.Hour),

		ReportSchemaPath: getEnv("REPORT_SCHEMA_PATH", ""),

		OAuthTokenURL:     getEnv("OAUTH_TOKEN_URL", ""),
		OAuthClientID:     getEnv("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),

		WorkerCount:       getIntEnv("WORKER_COUNT", 4),
		MaxAttempts:       getIntEnv("MAX_ATTEMPTS", 3),
		RetryInitialDelay: getDuration("RETRY_INITIAL_DELAY", 500*time.Millisecond),
		RetryMaxDelay:     getDuration("RETRY_MAX_DELAY", 30*time.Second),
		RequestTimeout:    getDuration("REQUEST_TIMEOUT", 2*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	brokers, err := requireEnv("KAFKA_BROKERS")
	if err != nil {
		return nil, err
	}
	cfg.KafkaBrokers = splitAndTrim(brokers)

	if cfg.KafkaTopic, err = requireEnv("KAFKA_TOPIC"); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL, err = requireEnv("DATABASE_URL"); err != nil {
		return nil, err
	}
	if cfg.NotificationURL, err = requireEnv("NOTIFICATION_URL"); err != nil {
		return nil, err
	}
	if cfg.ExportPath, err = requireEnv("EXPORT_PATH"); err != nil {
		return nil, err
	}
	if cfg.MetricsListenAddr, err = requireEnv("METRICS_LISTEN_ADDR"); err != nil {
		return nil, err
	}

	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("WORKER_COUNT must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("MAX_ATTEMPTS must be at least 1, got %d", cfg.MaxAttempts)
	}

	return cfg, nil
}

func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
