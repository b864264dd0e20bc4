package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, BackendBbolt, cfg.Store.Backend)
	assert.Equal(t, EngineNative, cfg.Matcher.Engine)
	assert.True(t, cfg.HTTP.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: SQLite
  path: /tmp/topics.sqlite
dictionary:
  seed_path: topics.yaml
  watch: true
matcher:
  engine: dfa
http:
  enabled: false
log:
  level: DEBUG
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/topics.sqlite", cfg.Store.Path)
	assert.Equal(t, "topics.yaml", cfg.Dictionary.SeedPath)
	assert.True(t, cfg.Dictionary.Watch)
	assert.Equal(t, EngineDFA, cfg.Matcher.Engine)
	assert.False(t, cfg.HTTP.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "matcher:\n  engine: dfa\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, EngineDFA, cfg.Matcher.Engine)
	assert.Equal(t, BackendBbolt, cfg.Store.Backend)
	assert.True(t, cfg.HTTP.Enabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad yaml", "store: [", "parse config"},
		{"backend", "store:\n  backend: postgres\n", "store.backend"},
		{"engine", "matcher:\n  engine: regex\n", "matcher.engine"},
		{"watch without seed", "dictionary:\n  watch: true\n", "dictionary.watch"},
		{"level", "log:\n  level: loud\n", "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Matcher.Engine = EngineDFA
	cfg.HTTP.Addr = "127.0.0.1:8080"

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}
