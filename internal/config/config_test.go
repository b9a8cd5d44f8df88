package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "./data/mural.db", cfg.DBPath)
	assert.Equal(t, 30*time.Minute, cfg.RoomTTL)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MURAL_PORT", "9090")
	t.Setenv("MURAL_ROOM_TTL", "10m")
	t.Setenv("MURAL_JWT_SECRET", "env-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 10*time.Minute, cfg.RoomTTL)
	assert.Equal(t, "env-secret", cfg.JWTSecret)
}
