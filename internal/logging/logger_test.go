package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDevelopment(t *testing.T) {
	t.Parallel()

	logger, err := New(true, "")
	require.NoError(t, err)
	assert.NotNil(t, logger)
	logger.Debug("dev logger emits debug")
}

func TestNewProduction(t *testing.T) {
	t.Parallel()

	logger, err := New(false, "")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewWithLogFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "backup.log")
	logger, err := New(false, path)
	require.NoError(t, err)
	logger.Info("written to file sink")
	require.NoError(t, logger.Sync())

	assert.FileExists(t, path)
}

func TestNewBadLogFilePath(t *testing.T) {
	t.Parallel()

	_, err := New(false, filepath.Join(t.TempDir(), "missing", "nested", "backup.log"))
	assert.Error(t, err)
}
