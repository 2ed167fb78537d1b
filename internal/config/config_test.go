package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LAZYSYNC_CONFIG_DIR", dir)

	assert.Equal(t, dir, Dir())
	assert.Equal(t, filepath.Join(dir, "settings.yaml"), SettingsPath())
	assert.Equal(t, filepath.Join(dir, "cache.json"), CacheFilePath())
	assert.Equal(t, filepath.Join(dir, "lazysync.log"), LogPath())
}

func TestConfigDirDefault(t *testing.T) {
	t.Setenv("LAZYSYNC_CONFIG_DIR", "")

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".lazysync"), Dir())
}

func TestLogPathFromEnv(t *testing.T) {
	t.Setenv("LAZYSYNC_LOG", "/tmp/custom.log")
	assert.Equal(t, "/tmp/custom.log", LogPath())
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("LAZYSYNC_CONFIG_DIR", t.TempDir())

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7878", s.ServerAddr)
	assert.Equal(t, "127.0.0.1:8090", s.HTTPAddr)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, CacheFilePath(), s.CacheFile)
	assert.Equal(t, 5*time.Second, s.RequestTimeout())
	assert.Equal(t, 10*time.Second, s.DialTimeout())
	assert.Equal(t, 200*time.Millisecond, s.BackoffInitial())
	assert.Equal(t, 30*time.Second, s.BackoffMax())
	assert.Zero(t, s.RefreshInterval(), "refresher is opt-in")
	assert.Equal(t, 5, s.RefreshDepth)
	assert.False(t, s.HideDotfiles)
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LAZYSYNC_CONFIG_DIR", dir)

	content := `
server_addr: "10.0.0.5:9000"
log_level: "debug"
request_timeout: 2
refresh_interval: 60
hide_dotfiles: true
ignore_patterns:
  - "*.tmp"
  - "node_modules/"
`
	require.NoError(t, os.WriteFile(SettingsPath(), []byte(content), 0o600))

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:9000", s.ServerAddr)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 2*time.Second, s.RequestTimeout())
	assert.Equal(t, 60*time.Second, s.RefreshInterval())
	assert.True(t, s.HideDotfiles)
	assert.Equal(t, []string{"*.tmp", "node_modules/"}, s.IgnorePatterns)

	// Unset fields still fall back.
	assert.Equal(t, "127.0.0.1:8090", s.HTTPAddr)
	assert.Equal(t, 10*time.Second, s.DialTimeout())
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LAZYSYNC_CONFIG_DIR", dir)
	require.NoError(t, os.WriteFile(SettingsPath(), []byte("server_addr: [broken"), 0o600))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitDirWritesDefaultSettings(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	t.Setenv("LAZYSYNC_CONFIG_DIR", dir)

	require.NoError(t, InitDir())

	data, err := os.ReadFile(SettingsPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "server_addr")

	// Re-running must not clobber an edited file.
	require.NoError(t, os.WriteFile(SettingsPath(), []byte("log_level: debug\n"), 0o600))
	require.NoError(t, InitDir())
	data, err = os.ReadFile(SettingsPath())
	require.NoError(t, err)
	assert.Equal(t, "log_level: debug\n", string(data))

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
}
