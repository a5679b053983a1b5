package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"barakahAPI/internal/logger"
	"barakahAPI/internal/observance"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port               string
	Env                string
	Store              string
	DatabaseURL        string
	ClerkSecretKey     string
	ClerkWebhookSecret string
	DevJWTSecret       string
	MetricsUser        string
	MetricsPass        string

	Calendar        observance.Calendar
	DefaultTimezone *time.Location

	ReconcileInStore  bool
	MaxStoreAttempts  int
	ReconcileInterval time.Duration

	SessionIdleTimeout time.Duration

	RateLimitRPS   float64
	RateLimitBurst int
}

// LoadDotEnv loads .env into the process environment. A missing file is not an error.
func LoadDotEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		logger.Info().Msg("No .env file found")
	}
}

// Override adjusts a loaded config before validation, e.g. from command line flags.
type Override func(*Config)

// Env is the ENV setting, defaulting to development.
func Env() string {
	return getEnv("ENV", "development")
}

// Load reads the configuration from the environment.
func Load(overrides ...Override) (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "3333"),
		Env:                Env(),
		Store:              strings.ToLower(getEnv("STORE", StorePostgres)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		ClerkSecretKey:     os.Getenv("CLERK_SECRET_KEY"),
		ClerkWebhookSecret: os.Getenv("CLERK_WEBHOOK_SECRET"),
		DevJWTSecret:       os.Getenv("DEV_JWT_SECRET"),
		MetricsUser:        os.Getenv("METRICS_USER"),
		MetricsPass:        os.Getenv("METRICS_PASS"),
	}

	var err error
	days, err := getInt("OBSERVANCE_DAYS", observance.DefaultDays)
	if err != nil {
		return nil, err
	}
	if cfg.Calendar, err = observance.ParseCalendar(os.Getenv("OBSERVANCE_FIRST_DAY"), days); err != nil {
		return nil, err
	}

	tz := getEnv("DEFAULT_TIMEZONE", "UTC")
	if cfg.DefaultTimezone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", tz, err)
	}

	if cfg.ReconcileInStore, err = getBool("RECONCILE_IN_STORE", true); err != nil {
		return nil, err
	}
	if cfg.MaxStoreAttempts, err = getInt("MAX_STORE_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = getDuration("RECONCILE_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTimeout, err = getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 5); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 30); err != nil {
		return nil, err
	}

	for _, o := range overrides {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the chosen store needs.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE %q, want %s or %s", c.Store, StorePostgres, StoreMemory)
	}
	if c.DevJWTSecret != "" && !c.IsDevelopment() {
		return fmt.Errorf("DEV_JWT_SECRET is only allowed when ENV=development")
	}
	if c.MaxStoreAttempts < 1 {
		return fmt.Errorf("MAX_STORE_ATTEMPTS must be at least 1, got %d", c.MaxStoreAttempts)
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive, got %s", c.SessionIdleTimeout)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
