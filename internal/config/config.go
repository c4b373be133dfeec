package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

const minSecretLen = 32

type Config struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	DevMode   bool   `env:"DEV_MODE" envDefault:"false"`

	StoreBackend   string `env:"STORE_BACKEND" envDefault:"sqlite"`
	DBPath         string `env:"DB_PATH" envDefault:"file:chessduel.db"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RedisURL       string `env:"REDIS_URL"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"chessduel"`

	RosterPath string `env:"ROSTER_PATH" envDefault:"roster.yaml"`

	SessionSecret     string        `env:"SESSION_SECRET"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"chess_session"`
	SessionMaxAge     time.Duration `env:"SESSION_MAX_AGE" envDefault:"168h"`
	SecureCookies     bool          `env:"SECURE_COOKIES" envDefault:"false"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	HistoryLimit   int           `env:"HISTORY_LIMIT" envDefault:"5"`

	AnalysisURL     string        `env:"ANALYSIS_URL"`
	AnalysisAPIKey  string        `env:"ANALYSIS_API_KEY"`
	AnalysisTimeout time.Duration `env:"ANALYSIS_TIMEOUT" envDefault:"15s"`
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying defaults for missing values and validating the result.
func Load() (Config, error) {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	return cfg, cfg.Validate()
}

// Validate checks cross-field rules that struct tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("ADDR cannot be empty"))
	}
	if len(c.SessionSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSecretLen))
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		errs = append(errs, errors.New("SESSION_COOKIE_NAME cannot be empty"))
	}
	if c.SessionMaxAge < time.Hour || c.SessionMaxAge > 30*24*time.Hour {
		errs = append(errs, errors.New("SESSION_MAX_AGE must be between 1h and 720h"))
	}
	if strings.TrimSpace(c.RosterPath) == "" {
		errs = append(errs, errors.New("ROSTER_PATH cannot be empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.HistoryLimit < 1 || c.HistoryLimit > 100 {
		errs = append(errs, errors.New("HISTORY_LIMIT must be between 1 and 100"))
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			errs = append(errs, errors.New("DB_PATH cannot be empty"))
		}
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	if c.AnalysisURL != "" && c.AnalysisAPIKey == "" {
		errs = append(errs, errors.New("ANALYSIS_API_KEY is required when ANALYSIS_URL is set"))
	}

	return errors.Join(errs...)
}

// AnalysisEnabled reports whether the external analysis service is configured.
func (c Config) AnalysisEnabled() bool {
	return c.AnalysisURL != "" && c.AnalysisAPIKey != ""
}
