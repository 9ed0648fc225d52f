package postgres_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technotrac/authcore/internal/postgres"
)

func TestParseConfig(t *testing.T) {
	cfg, err := postgres.ParseConfig(postgres.Config{
		URL:      "postgres://app:pw@db.internal:5432/technotrac?sslmode=disable",
		MaxConns: 7,
	})

	require.NoError(t, err)
	assert.Equal(t, int32(7), cfg.MaxConns)
	assert.Equal(t, int32(1), cfg.MinConns)
	assert.Equal(t, 30*time.Minute, cfg.MaxConnLifetime)
	assert.Equal(t, "db.internal", cfg.ConnConfig.Host)
	assert.Equal(t, "technotrac", cfg.ConnConfig.Database)
}

func TestParseConfig_InvalidURL(t *testing.T) {
	_, err := postgres.ParseConfig(postgres.Config{URL: "postgres://%zz"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
