package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 2*time.Second, cfg.Game.BotDelay)
	assert.Equal(t, 3*time.Second, cfg.Game.DeclareGrace)
	assert.False(t, cfg.Game.SwapOnSeven)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 3, cfg.Replication.MaxRetries)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `
server:
  address: ":9999"
logging:
  level: debug
  format: console
game:
  bot_delay: 500ms
  swap_on_seven: true
database:
  url: "postgres://localhost/uno"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 500*time.Millisecond, cfg.Game.BotDelay)
	assert.True(t, cfg.Game.SwapOnSeven)
	assert.Equal(t, "postgres://localhost/uno", cfg.Database.URL)
	// Untouched sections keep their defaults.
	assert.Equal(t, 3*time.Second, cfg.Game.DeclareGrace)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoadRejectsBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}
