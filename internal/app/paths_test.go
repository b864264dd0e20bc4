package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaths(t *testing.T) {
	p := NewPaths("/project")
	assert.Equal(t, filepath.Join("/project", ".cognitia"), p.Root)
	assert.Equal(t, filepath.Join("/project", ".cognitia", "cognitia.db"), p.DB)
	assert.Equal(t, filepath.Join("/project", ".cognitia", "cognitia.sqlite"), p.SQLiteDB)
	assert.Equal(t, filepath.Join("/project", ".cognitia", "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join("/project", ".cognitia", "log"), p.LogDir)
	assert.Equal(t, filepath.Join("/project", ".cognitia", "log", "daemon.log"), p.DaemonLog)
	assert.Equal(t, filepath.Join("/project", ".cognitia", "run"), p.RunDir)
	assert.Equal(t, filepath.Join("/project", ".cognitia", "run", "daemon.pid"), p.PIDFile)
	assert.Equal(t, filepath.Join("/project", ".cognitia", "run", "http.port"), p.PortFile)
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	p := NewPaths(dir)

	// First call creates directories.
	require.NoError(t, p.EnsureDirs())
	for _, d := range []string{p.Root, p.LogDir, p.RunDir} {
		info, err := os.Stat(d)
		require.NoError(t, err, "dir %s should exist", d)
		assert.True(t, info.IsDir())
	}

	// Second call is idempotent.
	require.NoError(t, p.EnsureDirs())
}

func TestCleanEphemeral(t *testing.T) {
	p := NewPaths(t.TempDir())
	require.NoError(t, p.EnsureDirs())
	require.NoError(t, p.WritePID(4242))
	require.NoError(t, os.WriteFile(p.PortFile, []byte("19001"), 0644))

	data, err := os.ReadFile(p.PIDFile)
	require.NoError(t, err)
	assert.Equal(t, "4242", string(data))

	p.CleanEphemeral()
	_, err = os.Stat(p.PIDFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(p.PortFile)
	assert.True(t, os.IsNotExist(err))

	// Missing files are fine.
	p.CleanEphemeral()
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "", resolve("/project", ""))
	assert.Equal(t, "/abs/topics.yaml", resolve("/project", "/abs/topics.yaml"))
	assert.Equal(t, filepath.Join("/project", "dict", "topics.yaml"), resolve("/project", "dict/topics.yaml"))
}
