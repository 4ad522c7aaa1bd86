package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseDriver string
	DatabaseURL    string
	JWTSecretKey   string
	ServerPort     int

	Logging LoggingConfig

	CORSAllowedOrigins []string

	ScoreMin                 int64
	ScoreMax                 int64
	SubmitRatePerMinute      int
	RecentAchievementsWindow time.Duration
	AutoLockInterval         time.Duration

	Webhooks WebhookConfig

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// LoggingConfig describes where and how verbosely the service logs.
type LoggingConfig struct {
	Level      string
	LogDir     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// WebhookConfig lists the chat platforms score and achievement events are relayed to.
// An empty URL disables the platform.
type WebhookConfig struct {
	TeamsURL   string
	DiscordURL string
	SlackURL   string
	Timeout    time.Duration
}

// UploadsEnabled reports whether every R2 setting needed for icon uploads is present.
func (c *Config) UploadsEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	driver := strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", DriverPostgres))
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, driver)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := getInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	cfg := &Config{
		DatabaseDriver: driver,
		DatabaseURL:    dbURL,
		JWTSecretKey:   jwtKey,
		ServerPort:     port,

		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		Webhooks: WebhookConfig{
			TeamsURL:   strings.TrimSpace(os.Getenv("TEAMS_WEBHOOK_URL")),
			DiscordURL: strings.TrimSpace(os.Getenv("DISCORD_WEBHOOK_URL")),
			SlackURL:   strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL")),
		},

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	if cfg.Logging, err = loadLogging(); err != nil {
		return nil, err
	}

	if cfg.ScoreMin, err = getInt64("SCORE_MIN", 0); err != nil {
		return nil, err
	}
	if cfg.ScoreMax, err = getInt64("SCORE_MAX", 999_999_999); err != nil {
		return nil, err
	}
	if cfg.ScoreMin > cfg.ScoreMax {
		return nil, fmt.Errorf("SCORE_MIN (%d) must not exceed SCORE_MAX (%d)", cfg.ScoreMin, cfg.ScoreMax)
	}

	if cfg.SubmitRatePerMinute, err = getInt("SUBMIT_RATE_PER_MINUTE", 60); err != nil {
		return nil, err
	}
	if cfg.SubmitRatePerMinute < 0 {
		return nil, fmt.Errorf("SUBMIT_RATE_PER_MINUTE must not be negative, got %d", cfg.SubmitRatePerMinute)
	}

	if cfg.RecentAchievementsWindow, err = getDuration("RECENT_ACHIEVEMENTS_WINDOW", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RecentAchievementsWindow <= 0 {
		return nil, fmt.Errorf("RECENT_ACHIEVEMENTS_WINDOW must be positive, got %s", cfg.RecentAchievementsWindow)
	}
	if cfg.AutoLockInterval, err = getDuration("AUTO_LOCK_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.Webhooks.Timeout, err = getDuration("WEBHOOK_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadLogging() (LoggingConfig, error) {
	lc := LoggingConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogDir: strings.TrimSpace(os.Getenv("LOG_DIR")),
	}
	var err error
	if lc.MaxSizeMB, err = getInt("LOG_MAX_SIZE_MB", 50); err != nil {
		return lc, err
	}
	if lc.MaxBackups, err = getInt("LOG_MAX_BACKUPS", 5); err != nil {
		return lc, err
	}
	if lc.MaxAgeDays, err = getInt("LOG_MAX_AGE_DAYS", 14); err != nil {
		return lc, err
	}
	if lc.Compress, err = getBool("LOG_COMPRESS", true); err != nil {
		return lc, err
	}
	return lc, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func getInt64(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func getBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, v)
	}
	return v, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
