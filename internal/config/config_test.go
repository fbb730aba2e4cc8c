package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
http:
  addr: ":9090"
limits:
  send_rate_per_minute: 30
  history_page_size: 25
cleanup:
  declined_retention: 720h
auth:
  jwt_access_ttl: 5m
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Limits.SendRatePerMinute != 30 {
		t.Fatalf("unexpected send_rate_per_minute: %d", cfg.Limits.SendRatePerMinute)
	}
	if cfg.Limits.HistoryPageSize != 25 {
		t.Fatalf("unexpected history_page_size: %d", cfg.Limits.HistoryPageSize)
	}
	if cfg.Cleanup.DeclinedRetention != 720*time.Hour {
		t.Fatalf("unexpected declined retention: %s", cfg.Cleanup.DeclinedRetention)
	}
	if cfg.Auth.JWTAccessTTL != 5*time.Minute {
		t.Fatalf("unexpected access ttl: %s", cfg.Auth.JWTAccessTTL)
	}

	if cfg.Limits.SendRatePer10Seconds != 15 {
		t.Fatalf("send_rate_per_10sec default should stay 15")
	}
	if cfg.Limits.ListLimit != 100 {
		t.Fatalf("list_limit default should stay 100")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected default http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Limits.SendRatePerMinute != 60 {
		t.Fatalf("unexpected default send rate/min: %d", cfg.Limits.SendRatePerMinute)
	}
	if cfg.Limits.HistoryPageSize != 50 {
		t.Fatalf("unexpected default history page size: %d", cfg.Limits.HistoryPageSize)
	}
	if cfg.Cleanup.Interval != 6*time.Hour {
		t.Fatalf("unexpected default cleanup interval: %s", cfg.Cleanup.Interval)
	}
	if cfg.S3.URLExpiry != time.Hour {
		t.Fatalf("unexpected default s3 url expiry: %s", cfg.S3.URLExpiry)
	}
}

func TestLoadEnvOverridesBeatYAML(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("POSTGRES_DSN", "postgres://env:env@db:5432/nyem")
	t.Setenv("SEND_RATE_PER_MINUTE", "10")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Postgres.DSN != "postgres://env:env@db:5432/nyem" {
		t.Fatalf("unexpected dsn: %s", cfg.Postgres.DSN)
	}
	if cfg.Limits.SendRatePerMinute != 10 {
		t.Fatalf("unexpected send rate/min: %d", cfg.Limits.SendRatePerMinute)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"S3_ENDPOINT",
		"S3_ACCESS_KEY",
		"S3_SECRET_KEY",
		"S3_BUCKET",
		"S3_USE_SSL",
		"S3_URL_EXPIRY",
		"JWT_SECRET",
		"JWT_ACCESS_TTL",
		"REFRESH_TTL",
		"SEND_RATE_PER_MINUTE",
		"SEND_RATE_PER_10SEC",
		"HISTORY_PAGE_SIZE",
		"LIST_LIMIT",
		"CLEANUP_INTERVAL",
		"CLEANUP_DECLINED_RETENTION",
	} {
		t.Setenv(key, "")
	}
}
