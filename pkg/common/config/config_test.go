package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("KAFKA_TOPIC", "export-requests")
	t.Setenv("DATABASE_URL", "postgres://worker:secret@db:5432/exports")
	t.Setenv("NOTIFICATION_URL", "http://notify.local/hook")
	t.Setenv("EXPORT_PATH", "/var/exports")
	t.Setenv("METRICS_LISTEN_ADDR", ":9090")
}

func TestLoadParsesRequiredAndDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if cfg.KafkaGroupID != "excel-export-worker" {
		t.Fatalf("unexpected default group id %q", cfg.KafkaGroupID)
	}
	if cfg.WorkerCount != 4 || cfg.MaxAttempts != 3 {
		t.Fatalf("unexpected processing defaults: workers=%d attempts=%d", cfg.WorkerCount, cfg.MaxAttempts)
	}
	if cfg.RetryInitialDelay != 500*time.Millisecond || cfg.RequestTimeout != 2*time.Minute {
		t.Fatalf("unexpected duration defaults: %v %v", cfg.RetryInitialDelay, cfg.RequestTimeout)
	}
}

func TestLoadFailsWhenRequiredMissing(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error for a missing required variable")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("error should name the missing variable, got %v", err)
	}
}

func TestLoadRejectsInvalidBounds(t *testing.T) {
	setRequired(t)
	t.Setenv("WORKER_COUNT", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for WORKER_COUNT=0")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("WORKER_COUNT", "16")
	t.Setenv("MAX_ATTEMPTS", "5")
	t.Setenv("REQUEST_TIMEOUT", "45s")
	t.Setenv("REDIS_ADDR", "cache:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorkerCount != 16 || cfg.MaxAttempts != 5 {
		t.Fatalf("overrides not applied: workers=%d attempts=%d", cfg.WorkerCount, cfg.MaxAttempts)
	}
	if cfg.RequestTimeout != 45*time.Second {
		t.Fatalf("unexpected request timeout %v", cfg.RequestTimeout)
	}
	if cfg.RedisAddr != "cache:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.RedisAddr)
	}
}
