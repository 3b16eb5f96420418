package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visionforge/visionforge/internal/config"
)

func TestBuildLibsqlDSN(t *testing.T) {
	t.Run("URLUsesRawValue", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=token123", dsn)
	})

	t.Run("URLKeepsExistingToken", func(t *testing.T) {
		cfg := config.StoreConfig{
			URL:       "libsql://example.turso.io?authToken=abc",
			AuthToken: "token123",
		}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "libsql://example.turso.io?authToken=abc", dsn)
	})

	t.Run("PlainPathGetsFilePrefix", func(t *testing.T) {
		dir := t.TempDir()
		cfg := config.StoreConfig{Path: dir + "/history/runs.db"}

		dsn, err := buildLibsqlDSN(cfg)
		require.NoError(t, err)
		require.Equal(t, "file:"+dir+"/history/runs.db", dsn)
		require.DirExists(t, dir+"/history")
	})

	t.Run("PathMissing", func(t *testing.T) {
		_, err := buildLibsqlDSN(config.StoreConfig{})
		require.EqualError(t, err, "store path or url is required")
	})

	t.Run("MemoryPath", func(t *testing.T) {
		dsn, err := buildLibsqlDSN(config.StoreConfig{Path: ":memory:"})
		require.NoError(t, err)
		require.Equal(t, ":memory:", dsn)
		require.True(t, isLocalDSN(dsn))
		require.False(t, isLocalDSN("libsql://example.turso.io"))
	})
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	require.NoError(t, s.Close())
	require.Empty(t, s.Driver())
	_, err := s.ListRuns(context.Background(), 0)
	require.EqualError(t, err, "store is not initialized")
}
