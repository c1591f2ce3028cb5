package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks the variables LoadConfig honours so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"BACKEND_URL", "PORT", "LOG_LEVEL", "EQUIPVIZ_SERVER_PORT", "EQUIPVIZ_UI_TIME_ZONE"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_CreatesDefault(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "conf", "equipviz.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.FileExists(t, path)
	assert.Equal(t, "0.0.0.0:8090", cfg.GetServerAddr())
	assert.Equal(t, 3*time.Second, cfg.SuccessBannerDuration())
	assert.Zero(t, cfg.BackendTimeout())
}

func TestLoadConfig_FileValuesOverDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "equipviz.yaml")
	content := `
backend:
  url: http://analysis.internal:8000/
  timeout_seconds: 15
ui:
  success_banner_seconds: 5
  time_zone: UTC
session:
  max_sessions: 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://analysis.internal:8000", cfg.GetBackendURL())
	assert.Equal(t, 15*time.Second, cfg.BackendTimeout())
	assert.Equal(t, 5*time.Second, cfg.SuccessBannerDuration())
	assert.Equal(t, 7, cfg.Session.MaxSessions)
	// untouched keys keep their defaults
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "equipviz_session", cfg.Session.CookieName)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKEND_URL", "https://equipment.example.com")
	t.Setenv("PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("EQUIPVIZ_UI_TIME_ZONE", "UTC")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "equipviz.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://equipment.example.com", cfg.Backend.URL)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
	assert.Equal(t, "UTC", cfg.UI.TimeZone)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	const key = "EQUIPVIZ_DOWNLOADS_DIRECTORY"
	if _, set := os.LookupEnv(key); set {
		t.Skipf("%s already set in environment", key)
	}
	clearEnv(t)
	t.Cleanup(func() { os.Unsetenv(key) })

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=/srv/reports\n"), 0644))

	cfg, err := LoadConfig(filepath.Join(dir, "equipviz.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/reports", cfg.GetDownloadDir())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr bool
	}{
		{"defaults", func(c *AppConfig) {}, false},
		{"relative backend", func(c *AppConfig) { c.Backend.URL = "localhost:8000" }, true},
		{"ftp backend", func(c *AppConfig) { c.Backend.URL = "ftp://host" }, true},
		{"bad port", func(c *AppConfig) { c.Server.Port = 70000 }, true},
		{"bad zone", func(c *AppConfig) { c.UI.TimeZone = "Mars/Olympus" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
