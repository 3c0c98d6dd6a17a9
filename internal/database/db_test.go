package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, profile DatabaseProfile) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "test.db"),
		Profile: profile,
		Name:    "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewCreatesDatabase(t *testing.T) {
	db := newTestDB(t, ProfileCache)

	assert.NotNil(t, db.Conn())
	assert.Equal(t, "test", db.Name())
	assert.Equal(t, ProfileCache, db.Profile())
	assert.True(t, filepath.IsAbs(db.Path()))
}

func TestNewDefaultsToStandardProfile(t *testing.T) {
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
		Name: "test",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileStandard, db.Profile())
}

func TestHealthChecks(t *testing.T) {
	db := newTestDB(t, ProfileStandard)
	ctx := context.Background()

	require.NoError(t, db.QuickCheck(ctx))
	require.NoError(t, db.HealthCheck(ctx))
}

func TestQuickCheckOnClosedDB(t *testing.T) {
	db := newTestDB(t, ProfileCache)
	require.NoError(t, db.Close())

	assert.Error(t, db.QuickCheck(context.Background()))
}

func TestWALCheckpoint(t *testing.T) {
	db := newTestDB(t, ProfileCache)

	_, err := db.Conn().Exec(`CREATE TABLE t (v TEXT)`)
	require.NoError(t, err)
	_, err = db.Conn().Exec(`INSERT INTO t (v) VALUES ('x')`)
	require.NoError(t, err)

	require.NoError(t, db.WALCheckpoint("TRUNCATE"))

	// Empty mode falls back to TRUNCATE
	require.NoError(t, db.WALCheckpoint(""))
}

func TestGetStats(t *testing.T) {
	db := newTestDB(t, ProfileStandard)

	_, err := db.Conn().Exec(`CREATE TABLE t (v TEXT)`)
	require.NoError(t, err)

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}
