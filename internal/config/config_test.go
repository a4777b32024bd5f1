package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, ":8000", cfg.Server.Listen)
	assert.Equal(t, "signal_events.db", cfg.Store.DatabasePath)
	assert.True(t, cfg.Push.Enabled)
	assert.Equal(t, ":8001", cfg.Push.Listen)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signald.yaml")
	yaml := `
server:
  transport: http
  listen: ":9000"
store:
  database_path: /tmp/custom.db
push:
  enabled: false
agent:
  count: 25
  delay: 500ms
logging:
  verbose: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Server.Transport)
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, "/tmp/custom.db", cfg.Store.DatabasePath)
	assert.False(t, cfg.Push.Enabled)
	assert.Equal(t, 25, cfg.Agent.Count)
	assert.Equal(t, 500*time.Millisecond, cfg.AgentDelay())
	assert.True(t, cfg.Logging.Verbose)

	// Untouched sections keep their defaults.
	assert.Equal(t, ":8001", cfg.Push.Listen)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signald.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [broken"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIGNALD_DB", "/tmp/env.db")
	t.Setenv("SIGNALD_LISTEN", ":7000")
	t.Setenv("SIGNALD_PUSH_LISTEN", ":7001")
	t.Setenv("SIGNALD_SERVER_URL", "http://elsewhere:7000")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.Store.DatabasePath)
	assert.Equal(t, ":7000", cfg.Server.Listen)
	assert.Equal(t, ":7001", cfg.Push.Listen)
	assert.Equal(t, "http://elsewhere:7000", cfg.Agent.ServerURL)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "signald.yaml")

	cfg := Default()
	cfg.Server.Transport = "http"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http", loaded.Server.Transport)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Server.Transport = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Agent.Transport = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Store.DatabasePath = ""
	assert.Error(t, cfg.Validate())
}

func TestAgentDelayFallback(t *testing.T) {
	cfg := Default()
	cfg.Agent.Delay = "not-a-duration"
	assert.Equal(t, 2*time.Second, cfg.AgentDelay())
}
