// Package config loads application configuration from environment
// variables.  A .env file in the working directory is read first when
// present; variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env      string // APP_ENV, e.g. "dev" or "prod"
	Port     string // APP_PORT
	Location *time.Location
	LogLevel string

	StoreDriver string
	DBUser      string
	DBPass      string // may be empty
	DBHost      string
	DBPort      string
	DBName      string

	JWTSecret string

	SweepInterval     time.Duration
	SweepWorkers      int
	ReconcileInterval time.Duration
	WithdrawLockTTL   time.Duration

	RabbitURL      string // empty disables the broker
	EventsExchange string
	EventsAuditLog string

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
}

// Prod reports whether the service runs in production.
func (c Config) Prod() bool { return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production") }

// AccessTokenTTL is the lifetime of minted access tokens, read from
// ACCESS_TOKEN_TTL_MIN (default 60 minutes).
func AccessTokenTTL() time.Duration {
	minutes := envInt("ACCESS_TOKEN_TTL_MIN", 60)
	if minutes <= 0 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

// Load reads the configuration.  Database settings are only required for
// the mysql store driver.
func Load() (Config, error) {
	_ = godotenv.Load()

	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:               envStr("APP_ENV", "dev"),
		Port:              envStr("APP_PORT", "8080"),
		LogLevel:          envStr("LOG_LEVEL", ""),
		StoreDriver:       strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
		JWTSecret:         must("JWT_SECRET"),
		SweepInterval:     envDur("SWEEP_INTERVAL", time.Minute),
		SweepWorkers:      envInt("SWEEP_WORKERS", 4),
		ReconcileInterval: envDur("RECONCILE_INTERVAL", time.Hour),
		WithdrawLockTTL:   envDur("WITHDRAW_LOCK_TTL", 30*time.Second),
		RabbitURL:         os.Getenv("RABBITMQ_URL"),
		EventsExchange:    envStr("EVENTS_EXCHANGE", "reservation.events"),
		EventsAuditLog:    envStr("EVENTS_AUDIT_LOG", "logs/reservation-events.log"),
		Redis:             LoadRedisConfig(),
		RateLimit:         LoadRateLimitConfig(),
		Cache:             LoadCacheConfig(),
	}

	switch cfg.StoreDriver {
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case DriverMemory:
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if len(missing) > 0 {
		return Config{}, errors.New("missing required env vars: " + strings.Join(missing, ", "))
	}

	loc, err := time.LoadLocation(envStr("APP_TIMEZONE", "UTC"))
	if err != nil {
		return Config{}, fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	cfg.Location = loc
	if cfg.SweepWorkers < 1 {
		cfg.SweepWorkers = 1
	}
	return cfg, nil
}
