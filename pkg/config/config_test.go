package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DUST_DIRS", t.TempDir())

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 4001, cfg.ServerPort)
	assert.Equal(t, 5*time.Minute, cfg.ScanInterval)
	assert.Equal(t, 60*time.Minute, cfg.CleanupInterval)
	assert.Equal(t, 365*24*time.Hour, cfg.ArchiveRetention)
	assert.False(t, cfg.EnrichmentEnabled())
	assert.True(t, filepath.IsAbs(cfg.DatabaseFilePath))
}

func TestNewRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("DUST_DIRS", t.TempDir())

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestNewRequiresLibraryDirectories(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DUST_DIRS", "")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DUST_DIRS")
}

func TestNewSplitsLibraryDirectories(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DUST_DIRS", dirA+":"+dirB)

	cfg, err := New()
	require.NoError(t, err)

	require.Len(t, cfg.LibraryDirectories, 2)
	assert.Equal(t, dirA, cfg.LibraryDirectories[0])
	assert.Equal(t, dirB, cfg.LibraryDirectories[1])
}

func TestNewEnrichmentEnabled(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DUST_DIRS", t.TempDir())
	t.Setenv("GOOGLE_BOOKS_API_KEY", "key-123")

	cfg, err := New()
	require.NoError(t, err)

	assert.True(t, cfg.EnrichmentEnabled())
}
