package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(PathEnvVar, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
  request_timeout: 2s
  allowed_origins:
    - http://a.example
    - http://b.example
catalog:
  path: /srv/recipes.json
favorites:
  backend: badger
  badger_path: /var/lib/fridge
logging:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/srv/recipes.json", cfg.Catalog.Path)
	assert.Equal(t, "badger", cfg.Favorites.Backend)
	assert.Equal(t, "/var/lib/fridge", cfg.Favorites.BadgerPath)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// untouched keys keep their defaults
	assert.Equal(t, 45*time.Second, cfg.Server.ScanTimeout)
	assert.Equal(t, uint(400), cfg.Assets.ThumbnailWidth)
}

func TestLoadFileFromEnv(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":7070\"\n")
	t.Setenv(PathEnvVar, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")
	t.Setenv("FRIDGE_SERVER_ADDR", ":6060")
	t.Setenv("FRIDGE_SERVER_ALLOWED_ORIGINS", "http://x.example, http://y.example,")
	t.Setenv("FRIDGE_FAVORITES_BACKEND", "postgres")
	t.Setenv("FRIDGE_FAVORITES_DATABASE_URL", "postgres://localhost/fridge")
	t.Setenv("FRIDGE_DETECTOR_BACKEND", "local")
	t.Setenv("FRIDGE_DETECTOR_LOCAL_URL", "http://localhost:1234/v1/chat/completions")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Server.Addr)
	assert.Equal(t, []string{"http://x.example", "http://y.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres", cfg.Favorites.Backend)
	assert.Equal(t, "postgres://localhost/fridge", cfg.Favorites.DatabaseURL)
	assert.Equal(t, "local", cfg.Detector.Backend)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown favorites backend", "favorites:\n  backend: redis\n"},
		{"badger without path", "favorites:\n  backend: badger\n"},
		{"postgres without url", "favorites:\n  backend: postgres\n"},
		{"gemini without key", "detector:\n  backend: gemini\n"},
		{"bad local url", "detector:\n  backend: local\n  local_url: \"not a url\"\n"},
		{"bad log level", "logging:\n  level: loud\n"},
		{"zero timeout", "server:\n  request_timeout: 0s\n"},
		{"empty addr", "server:\n  addr: \"\"\n"},
		{"thumbnail too wide", "assets:\n  thumbnail_width: 4096\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "server.addr", envKey("FRIDGE_SERVER_ADDR"))
	assert.Equal(t, "favorites.database_url", envKey("FRIDGE_FAVORITES_DATABASE_URL"))
	assert.Equal(t, "detector.gemini_api_key", envKey("FRIDGE_DETECTOR_GEMINI_API_KEY"))
}

func TestExampleConfigIsValid(t *testing.T) {
	cfg, err := Load("../../config.example.yaml")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Favorites.Backend)
	assert.Equal(t, uint32(3), cfg.Detector.FailureThreshold)
	assert.Equal(t, 10, cfg.Detector.ScansPerMinute)
}
