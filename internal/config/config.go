package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DefaultSyncSchedule   = "0 4 * * *"
	DefaultSyncBatchSize  = 5
	DefaultSyncBatchDelay = 2000 * time.Millisecond
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	JWTExpiry   time.Duration

	AdminEmail        string
	AdminPasswordHash string

	Sync SyncConfig
	Play PlayConfig
	Log  LogConfig
}

type SyncConfig struct {
	Schedule   string
	Timezone   *time.Location
	BatchSize  int
	BatchDelay time.Duration
	LockTTL    time.Duration
}

type PlayConfig struct {
	BaseURL       string
	Lang          string
	Country       string
	RatePerMinute int
	Timeout       time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func LoadConfig() (*Config, error) {
	expiry, err := time.ParseDuration(getEnv("JWT_EXPIRY", "24h"))
	if err != nil {
		return nil, errors.New("invalid JWT_EXPIRY format")
	}

	sync, err := loadSyncConfig()
	if err != nil {
		return nil, err
	}
	play, err := loadPlayConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTExpiry:         expiry,
		AdminEmail:        getEnv("ADMIN_EMAIL", "admin@localhost"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		Sync:              *sync,
		Play:              *play,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

func loadSyncConfig() (*SyncConfig, error) {
	loc, err := time.LoadLocation(getEnv("SYNC_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_TIMEZONE: %w", err)
	}

	batchSize, err := getEnvInt("SYNC_BATCH_SIZE", DefaultSyncBatchSize)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		return nil, errors.New("SYNC_BATCH_SIZE must be positive")
	}

	delay, err := getEnvMillis("SYNC_BATCH_DELAY", DefaultSyncBatchDelay)
	if err != nil {
		return nil, err
	}

	lockTTL, err := time.ParseDuration(getEnv("SYNC_LOCK_TTL", "2m"))
	if err != nil {
		return nil, errors.New("invalid SYNC_LOCK_TTL format")
	}

	return &SyncConfig{
		Schedule:   getEnv("SYNC_SCHEDULE", DefaultSyncSchedule),
		Timezone:   loc,
		BatchSize:  batchSize,
		BatchDelay: delay,
		LockTTL:    lockTTL,
	}, nil
}

func loadPlayConfig() (*PlayConfig, error) {
	rpm, err := getEnvInt("PLAY_RATE_PER_MINUTE", 30)
	if err != nil {
		return nil, err
	}
	timeout, err := time.ParseDuration(getEnv("PLAY_TIMEOUT", "15s"))
	if err != nil {
		return nil, errors.New("invalid PLAY_TIMEOUT format")
	}

	return &PlayConfig{
		BaseURL:       getEnv("PLAY_BASE_URL", "https://play.google.com"),
		Lang:          getEnv("PLAY_LANG", "en"),
		Country:       getEnv("PLAY_COUNTRY", "us"),
		RatePerMinute: rpm,
		Timeout:       timeout,
	}, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not an integer", key, value)
	}
	return n, nil
}

// getEnvMillis accepts either a Go duration ("2s") or bare milliseconds ("2000").
func getEnvMillis(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if ms, err := strconv.Atoi(value); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("invalid %s: must not be negative", key)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return d, nil
}
