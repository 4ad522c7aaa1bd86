package config

import (
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"DATABASE_DRIVER", "DATABASE_URL", "JWT_SECRET_KEY", "SERVER_PORT",
	"LOG_LEVEL", "LOG_DIR", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS", "LOG_MAX_AGE_DAYS", "LOG_COMPRESS",
	"CORS_ALLOWED_ORIGINS", "SCORE_MIN", "SCORE_MAX", "SUBMIT_RATE_PER_MINUTE",
	"RECENT_ACHIEVEMENTS_WINDOW", "AUTO_LOCK_INTERVAL",
	"TEAMS_WEBHOOK_URL", "DISCORD_WEBHOOK_URL", "SLACK_WEBHOOK_URL", "WEBHOOK_TIMEOUT",
	"R2_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_BUCKET_NAME", "R2_PUBLIC_BASE_URL",
}

func setBaseEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
	t.Setenv("DATABASE_URL", "postgres://localhost/arcade")
	t.Setenv("JWT_SECRET_KEY", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseDriver != DriverPostgres {
		t.Errorf("expected postgres driver, got %q", cfg.DatabaseDriver)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.ServerPort)
	}
	if cfg.ScoreMin != 0 || cfg.ScoreMax != 999_999_999 {
		t.Errorf("unexpected score range [%d, %d]", cfg.ScoreMin, cfg.ScoreMax)
	}
	if cfg.RecentAchievementsWindow != 30*time.Second {
		t.Errorf("expected 30s window, got %s", cfg.RecentAchievementsWindow)
	}
	if cfg.Webhooks.Timeout != 5*time.Second {
		t.Errorf("expected 5s webhook timeout, got %s", cfg.Webhooks.Timeout)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.UploadsEnabled() {
		t.Error("uploads should be disabled without R2 settings")
	}
	if !cfg.Logging.Compress || cfg.Logging.MaxSizeMB != 50 {
		t.Errorf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("SCORE_MAX", "1000")
	t.Setenv("DISCORD_WEBHOOK_URL", " https://discord.example/hook ")
	t.Setenv("AUTO_LOCK_INTERVAL", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseDriver != DriverSQLite {
		t.Errorf("expected sqlite driver, got %q", cfg.DatabaseDriver)
	}
	if cfg.ServerPort != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.ServerPort)
	}
	if strings.Join(cfg.CORSAllowedOrigins, "|") != "https://a.example|https://b.example" {
		t.Errorf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.ScoreMax != 1000 {
		t.Errorf("expected score max 1000, got %d", cfg.ScoreMax)
	}
	if cfg.Webhooks.DiscordURL != "https://discord.example/hook" {
		t.Errorf("expected trimmed discord url, got %q", cfg.Webhooks.DiscordURL)
	}
	if cfg.AutoLockInterval != 0 {
		t.Errorf("expected auto lock disabled, got %s", cfg.AutoLockInterval)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"missing database url", "DATABASE_URL", ""},
		{"missing jwt secret", "JWT_SECRET_KEY", ""},
		{"bad driver", "DATABASE_DRIVER", "mysql"},
		{"bad port", "SERVER_PORT", "abc"},
		{"port out of range", "SERVER_PORT", "70000"},
		{"bad window", "RECENT_ACHIEVEMENTS_WINDOW", "soon"},
		{"zero window", "RECENT_ACHIEVEMENTS_WINDOW", "0s"},
		{"negative rate", "SUBMIT_RATE_PER_MINUTE", "-1"},
		{"bad compress flag", "LOG_COMPRESS", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestLoadRejectsInvertedScoreRange(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SCORE_MIN", "10")
	t.Setenv("SCORE_MAX", "5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for inverted score range")
	}
}
