package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8600", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Transport.ReadyTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("APP_ID", "acme-support")
	t.Setenv("BACKEND_URL", "https://api.test.invalid")
	t.Setenv("TRANSPORT_READY_TIMEOUT", "750ms")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "acme-support", cfg.App.ID)
	assert.Equal(t, "https://api.test.invalid", cfg.Backend.BaseURL)
	assert.Equal(t, 750*time.Millisecond, cfg.Transport.ReadyTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadWithFileOverlay(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("APP_ID", "from-env")

	path := filepath.Join(t.TempDir(), "widget.yaml")
	data := []byte("app:\n  id: from-file\n  channel_id: web\nstorage:\n  dir: /tmp/widget-test\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// File keys win over env; untouched keys keep env values.
	assert.Equal(t, "from-file", cfg.App.ID)
	assert.Equal(t, "web", cfg.App.ChannelID)
	assert.Equal(t, "/tmp/widget-test", cfg.Storage.Dir)
	assert.Equal(t, "9000", cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
