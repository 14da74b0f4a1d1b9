package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/harmonizer?sslmode=disable")
	t.Setenv("ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 10, cfg.Database.MaxConns)
	assert.Equal(t, 2, cfg.Database.MinConns)
	assert.Equal(t, "generation_processing_logs", cfg.Processing.LogDir)
	assert.Equal(t, 4, cfg.Processing.Workers)
	assert.Equal(t, time.Duration(0), cfg.Processing.Pace)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/harmonizer")
	t.Setenv("ENV", "sandbox")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENV")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/harmonizer")
	t.Setenv("ENV", "production")
	t.Setenv("PROCESSING_WORKERS", "8")
	t.Setenv("PROCESSING_PACE", "500ms")
	t.Setenv("DB_MAX_CONN_LIFETIME", "2h")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Processing.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.Processing.Pace)
	assert.Equal(t, 2*time.Hour, cfg.Database.MaxConnLifetime)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/harmonizer")
	t.Setenv("ENV", "development")
	t.Setenv("DB_MAX_CONNS", "not-a-number")
	t.Setenv("PROCESSING_PACE", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Database.MaxConns)
	assert.Equal(t, time.Duration(0), cfg.Processing.Pace)
}
