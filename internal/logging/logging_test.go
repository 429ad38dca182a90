package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, closeFn, err := New(Options{Dir: dir, Level: "debug"})
	require.NoError(t, err)
	logger.Named("engine").Debug("trigger fired")
	closeFn()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"trigger fired"`)
	assert.Contains(t, string(data), `"logger":"engine"`)
}

func TestLevelFilters(t *testing.T) {
	dir := t.TempDir()

	logger, closeFn, err := New(Options{Dir: dir, Level: "warn"})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	closeFn()

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestBadLevel(t *testing.T) {
	_, _, err := New(Options{NoFile: true, Level: "loud"})
	assert.Error(t, err)
}

func TestNoSinksIsNop(t *testing.T) {
	logger, closeFn, err := New(Options{NoFile: true})
	require.NoError(t, err)
	logger.Info("nowhere")
	closeFn()
}
