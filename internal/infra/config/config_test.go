package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
resolver:
  sources:
    - type: youtube
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Player.MaxHistory)
	assert.Equal(t, 2, cfg.Player.ResolveRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Player.RetryDelay())
	assert.InDelta(t, 1.0, cfg.Player.Volume, 0.001)
	assert.Equal(t, "https://yewtu.be/", cfg.Resolver.MirrorRoot)
	assert.False(t, cfg.Favorites.Disabled)
	assert.Equal(t, "favorites.db", cfg.Favorites.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
player:
  max_history: 3
  resolve_retries: 5
  volume: 0.5
resolver:
  mirror_root: https://mirror.example/
  sources:
    - type: youtube
      settings:
        max_playlist_items: 20
    - type: catalog
      settings:
        client_id: id
        client_secret: secret
log:
  level: debug
  pretty: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Player.MaxHistory)
	assert.Equal(t, 5, cfg.Player.ResolveRetries)
	assert.InDelta(t, 0.5, cfg.Player.Volume, 0.001)
	assert.Equal(t, "https://mirror.example/", cfg.Resolver.MirrorRoot)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)

	src, ok := cfg.Resolver.Source("youtube")
	require.True(t, ok)
	assert.Equal(t, 20, src.Settings["max_playlist_items"])

	_, ok = cfg.Resolver.Source("catalog")
	assert.True(t, ok)
	_, ok = cfg.Resolver.Source("unknown")
	assert.False(t, ok)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "no sources",
			content: "player:\n  max_history: 5\n",
			errMsg:  "Sources",
		},
		{
			name: "no youtube source",
			content: `
resolver:
  sources:
    - type: catalog
      settings: {client_id: a, client_secret: b}
`,
			errMsg: "youtube",
		},
		{
			name: "source without type",
			content: `
resolver:
  sources:
    - settings: {}
`,
			errMsg: "Type",
		},
		{
			name: "bad log level",
			content: `
resolver:
  sources:
    - type: youtube
log:
  level: loud
`,
			errMsg: "Level",
		},
		{
			name: "negative history",
			content: `
player:
  max_history: -1
resolver:
  sources:
    - type: youtube
`,
			errMsg: "MaxHistory",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CATALOG_CLIENT_ID", "env-id")
	t.Setenv("CATALOG_CLIENT_SECRET", "env-secret")
	t.Setenv("FAVORITES_PATH", "/tmp/env-favorites.db")

	path := writeConfig(t, `
resolver:
  sources:
    - type: youtube
    - type: catalog
      settings:
        client_id: file-id
        client_secret: file-secret
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	src, ok := cfg.Resolver.Source("catalog")
	require.True(t, ok)
	assert.Equal(t, "env-id", src.Settings["client_id"])
	assert.Equal(t, "env-secret", src.Settings["client_secret"])
	assert.Equal(t, "/tmp/env-favorites.db", cfg.Favorites.Path)
}
