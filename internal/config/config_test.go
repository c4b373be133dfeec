package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/chessduel/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		Addr:              ":8080",
		LogLevel:          "INFO",
		StoreBackend:      config.BackendSQLite,
		DBPath:            "test.db",
		RosterPath:        "roster.yaml",
		SessionSecret:     strings.Repeat("s", 32),
		SessionCookieName: "chess_session",
		SessionMaxAge:     7 * 24 * time.Hour,
		RequestTimeout:    10 * time.Second,
		HistoryLimit:      5,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_EmptyAddr(t *testing.T) {
	cfg := validConfig()
	cfg.Addr = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ADDR cannot be empty")
}

func TestValidate_SessionSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{name: "missing", secret: ""},
		{name: "too short", secret: "short-secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.SessionSecret = tt.secret

			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "SESSION_SECRET")
		})
	}
}

func TestValidate_SessionMaxAge(t *testing.T) {
	tests := []struct {
		name  string
		age   time.Duration
		valid bool
	}{
		{name: "minutes", age: 10 * time.Minute, valid: false},
		{name: "one day", age: 24 * time.Hour, valid: true},
		{name: "two weeks", age: 14 * 24 * time.Hour, valid: true},
		{name: "a year", age: 365 * 24 * time.Hour, valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.SessionMaxAge = tt.age
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_StoreBackend(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:   "memory needs nothing",
			mutate: func(c *config.Config) { c.StoreBackend = config.BackendMemory; c.DBPath = "" },
		},
		{
			name:    "sqlite needs path",
			mutate:  func(c *config.Config) { c.DBPath = "" },
			wantErr: "DB_PATH cannot be empty",
		},
		{
			name:    "postgres needs url",
			mutate:  func(c *config.Config) { c.StoreBackend = config.BackendPostgres },
			wantErr: "DATABASE_URL",
		},
		{
			name:    "redis needs url",
			mutate:  func(c *config.Config) { c.StoreBackend = config.BackendRedis },
			wantErr: "REDIS_URL",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *config.Config) { c.StoreBackend = "mongo" },
			wantErr: "unknown STORE_BACKEND",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_AnalysisNeedsKey(t *testing.T) {
	cfg := validConfig()
	cfg.AnalysisURL = "https://analysis.example/api"
	assert.ErrorContains(t, cfg.Validate(), "ANALYSIS_API_KEY")
	assert.False(t, cfg.AnalysisEnabled())

	cfg.AnalysisAPIKey = "key"
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.AnalysisEnabled())
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Addr = ""
	cfg.SessionSecret = ""
	cfg.HistoryLimit = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADDR")
	assert.Contains(t, err.Error(), "SESSION_SECRET")
	assert.Contains(t, err.Error(), "HISTORY_LIMIT")
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SESSION_SECRET", strings.Repeat("x", 40))
	t.Setenv("STORE_BACKEND", " Memory ")
	t.Setenv("SESSION_MAX_AGE", "48h")
	t.Setenv("HISTORY_LIMIT", "10")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 48*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, 10, cfg.HistoryLimit)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "chess_session", cfg.SessionCookieName)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SESSION_SECRET", strings.Repeat("x", 40))
	t.Setenv("SESSION_MAX_AGE", "forever")

	_, err := config.Load()
	assert.Error(t, err)
}
