package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader("", "", "test").Load()
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Version)
	assert.Equal(t, 30*time.Second, cfg.Health.Interval)
	assert.Equal(t, 6, cfg.Playback.Retry.Manifest.MaxAttempts)
	assert.Equal(t, 64*time.Second, cfg.Playback.Retry.Manifest.MaxElapsed)
	assert.Equal(t, 4, cfg.Playback.Retry.Level.MaxAttempts)
	assert.Equal(t, 20*time.Second, cfg.Playback.Retry.Segment.Timeout)
	assert.Equal(t, cfg.Backend.BaseURL, cfg.EffectiveManifestBase())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
backend:
  baseUrl: http://converter:5000/api
playback:
  autoplay: false
  manifestBaseUrl: http://cdn:8080/api
health:
  interval: 10s
`)
	cfg, err := NewLoader(path, "", "").Load()
	require.NoError(t, err)

	assert.Equal(t, "http://converter:5000/api", cfg.Backend.BaseURL)
	assert.False(t, cfg.Playback.Autoplay)
	assert.Equal(t, 10*time.Second, cfg.Health.Interval)
	assert.Equal(t, "http://cdn:8080/api", cfg.EffectiveManifestBase())
	// untouched nested values keep their defaults
	assert.Equal(t, 6, cfg.Playback.Retry.Manifest.MaxAttempts)
}

func TestLoadFileRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "config.yaml", "backend:\n  baseURL: http://x\n")
	_, err := NewLoader(path, "", "").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoadFileRejectsNonYAML(t *testing.T) {
	path := writeFile(t, "config.json", "{}")
	_, err := NewLoader(path, "", "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "health:\n  interval: 10s\n")
	t.Setenv("LIVESITTER_HEALTH_INTERVAL", "45s")
	t.Setenv("LIVESITTER_AUTOPLAY", "no")

	l := NewLoader(path, "", "")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Health.Interval)
	assert.False(t, cfg.Playback.Autoplay)
	assert.Contains(t, l.ConsumedEnvKeys, "LIVESITTER_HEALTH_INTERVAL")
}

func TestEnvFileIsLoadedWithoutOverridingProcessEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "LIVESITTER_BACKEND_URL=http://from-dotenv:5000/api\nLIVESITTER_LISTEN_ADDR=:9999\n")
	t.Setenv("LIVESITTER_LISTEN_ADDR", ":7777")
	// godotenv sets variables in the process; make sure they are removed afterwards.
	t.Cleanup(func() { _ = os.Unsetenv("LIVESITTER_BACKEND_URL") })

	cfg, err := NewLoader("", envFile, "").Load()
	require.NoError(t, err)

	assert.Equal(t, "http://from-dotenv:5000/api", cfg.Backend.BaseURL)
	assert.Equal(t, ":7777", cfg.Server.ListenAddr)
}

func TestMissingEnvFileIsIgnored(t *testing.T) {
	_, err := NewLoader("", filepath.Join(t.TempDir(), "absent.env"), "").Load()
	require.NoError(t, err)
}

func TestInvalidEnvValueFallsBackToDefault(t *testing.T) {
	t.Setenv("LIVESITTER_HEALTH_INTERVAL", "soon")
	cfg, err := NewLoader("", "", "").Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Health.Interval)
}
