package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIAddr           string
	AdminAddr         string
	AdminPasswordHash string
	AdminPassword     string // presented by the CLI
	CORSOrigin        string

	AutoSaveInterval time.Duration
	SaveStaleAfter   time.Duration
	SaveDir          string
	SaveBackend      string
	SaveDB           string
	RedisAddr        string
	RestoreOnCreate  bool

	MaxHistory      int
	MaxChat         int
	MaxRooms        int
	MaxUsersPerRoom int

	EventsPerSecond   float64
	EventBurst        int
	ConnectsPerMinute int
}

const (
	BackendJSON   = "json"
	BackendBbolt  = "bbolt"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

func Load(cliMode bool) (*Config, error) {
	var (
		cfg Config
		err error
	)

	cfg.APIAddr = getEnv("API_ADDR", ":"+getEnv("PORT", "3001"))
	cfg.AdminAddr = getEnv("ADMIN_ADDR", "localhost:8081")
	cfg.AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	cfg.CORSOrigin = getEnv("CORS_ORIGIN", "*")
	cfg.SaveDir = getEnv("SAVE_DIR", "./saved-sessions")
	cfg.SaveBackend = getEnv("SAVE_BACKEND", BackendJSON)
	cfg.SaveDB = getEnv("SAVE_DB", "sessions.db")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")

	if cfg.AutoSaveInterval, err = getDuration("AUTO_SAVE_INTERVAL", "30s"); err != nil {
		return nil, err
	}
	if cfg.SaveStaleAfter, err = getDuration("SAVE_STALE_AFTER", "60s"); err != nil {
		return nil, err
	}
	if cfg.RestoreOnCreate, err = getBool("RESTORE_ON_CREATE", false); err != nil {
		return nil, err
	}
	if cfg.MaxHistory, err = getInt("MAX_HISTORY", 1000); err != nil {
		return nil, err
	}
	if cfg.MaxChat, err = getInt("MAX_CHAT", 500); err != nil {
		return nil, err
	}
	if cfg.MaxRooms, err = getInt("MAX_ROOMS", 100); err != nil {
		return nil, err
	}
	if cfg.MaxUsersPerRoom, err = getInt("MAX_USERS_PER_ROOM", 50); err != nil {
		return nil, err
	}
	if cfg.EventBurst, err = getInt("EVENT_BURST", 200); err != nil {
		return nil, err
	}
	if cfg.ConnectsPerMinute, err = getInt("CONNECTS_PER_MINUTE", 60); err != nil {
		return nil, err
	}
	if cfg.EventsPerSecond, err = getFloat("EVENTS_PER_SECOND", 100); err != nil {
		return nil, err
	}

	if err := cfg.Validate(cliMode); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values that the server cannot run with.
// In CLI mode only the admin address matters.
func (c *Config) Validate(cliMode bool) error {
	if c.AdminAddr == "" {
		return fmt.Errorf("ADMIN_ADDR is required")
	}
	if cliMode {
		return nil
	}

	if c.AutoSaveInterval <= 0 {
		return fmt.Errorf("AUTO_SAVE_INTERVAL must be greater than 0")
	}
	if c.SaveStaleAfter < 0 {
		return fmt.Errorf("SAVE_STALE_AFTER must not be negative")
	}
	if c.MaxHistory <= 0 {
		return fmt.Errorf("MAX_HISTORY must be greater than 0")
	}
	if c.MaxChat <= 0 {
		return fmt.Errorf("MAX_CHAT must be greater than 0")
	}
	if c.MaxRooms < 0 || c.MaxUsersPerRoom < 0 {
		return fmt.Errorf("MAX_ROOMS and MAX_USERS_PER_ROOM must not be negative")
	}
	if c.EventsPerSecond <= 0 || c.EventBurst <= 0 {
		return fmt.Errorf("EVENTS_PER_SECOND and EVENT_BURST must be greater than 0")
	}
	if c.ConnectsPerMinute <= 0 {
		return fmt.Errorf("CONNECTS_PER_MINUTE must be greater than 0")
	}

	switch c.SaveBackend {
	case BackendJSON:
		if c.SaveDir == "" {
			return fmt.Errorf("SAVE_DIR is required for the %s backend", BackendJSON)
		}
	case BackendBbolt, BackendSQLite:
		if c.SaveDB == "" {
			return fmt.Errorf("SAVE_DB is required for the %s backend", c.SaveBackend)
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the %s backend", BackendRedis)
		}
	default:
		return fmt.Errorf("unknown SAVE_BACKEND %q", c.SaveBackend)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
