package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresBaseURL(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_BASE_URL")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://localhost:3000/api")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "PSY", cfg.CodePrefix)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 30*time.Second, cfg.ProbeInterval)
	assert.False(t, cfg.ForceOffline)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://posyandu.example.org/api")
	t.Setenv("PORT", "9090")
	t.Setenv("SYNC_INTERVAL", "90s")
	t.Setenv("FORCE_OFFLINE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 90*time.Second, cfg.SyncInterval)
	assert.True(t, cfg.ForceOffline)
}

func TestValidateRejectsNonPositiveIntervals(t *testing.T) {
	cfg := &Config{
		APIBaseURL:    "http://localhost:3000",
		CodePrefix:    "PSY",
		APITimeout:    time.Second,
		SyncInterval:  0,
		ProbeInterval: time.Second,
	}
	require.Error(t, cfg.Validate())
}
