package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.PollIntervalDuration())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tern.yaml")
	content := `
log_level: debug
poll_interval: 250ms
slots: 8
metrics_addr: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.PollIntervalDuration())
	assert.Equal(t, 8, cfg.Slots)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().DataDir, cfg.DataDir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPollIntervalFallback(t *testing.T) {
	cfg := Config{PollInterval: "not-a-duration"}
	assert.Equal(t, time.Second, cfg.PollIntervalDuration())

	cfg.PollInterval = "-5s"
	assert.Equal(t, time.Second, cfg.PollIntervalDuration())
}
