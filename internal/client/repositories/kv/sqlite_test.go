package kv

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func setupRepo(t *testing.T) (*SQLiteRepository, *sql.DB) {
	t.Helper()
	db, err := InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteRepository(db), db
}

func TestInitDatabase_CreatesKVAndGooseTables(t *testing.T) {
	_, db := setupRepo(t)

	assert.True(t, tableExists(t, db, "kv"))
	assert.True(t, tableExists(t, db, "goose_db_version"))
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "app.db")

	db, err := InitDatabase(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, db.Close())

	db, err = InitDatabase(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()
	assert.True(t, tableExists(t, db, "kv"))
}

func TestSQLiteRepository_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "app.db")

	r, err := OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, r.Set(ctx, "token", "abc"))
	require.NoError(t, r.Close())

	r, err = OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	defer r.Close()

	v, ok, err := r.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestSQLiteRepository_UpdateIsAtomic(t *testing.T) {
	r, db := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "guestMode", "true"))

	// A trigger that rejects the second write forces a mid-batch failure.
	_, err := db.Exec(`
CREATE TRIGGER reject_user BEFORE INSERT ON kv
WHEN NEW.key = 'user'
BEGIN
  SELECT RAISE(ABORT, 'user rejected');
END;`)
	require.NoError(t, err)

	err = r.Update(ctx, map[string]string{"token": "abc", "user": "{}"}, []string{"guestMode"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to update kv")

	m, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"guestMode": "true"}, m, "nothing from the failed batch may be visible")
}

func TestSQLiteRepository_ErrorsAreWrapped(t *testing.T) {
	r, db := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, _, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, "failed to get kv[k]")

	require.ErrorContains(t, r.Set(ctx, "k", "v"), "failed to set kv[k]")
	require.ErrorContains(t, r.Remove(ctx, "k"), "failed to remove kv[k]")
	require.ErrorContains(t, r.RemoveAll(ctx, []string{"a"}), "failed to remove kv")
	require.ErrorContains(t, r.Update(ctx, map[string]string{"a": "1"}, nil), "failed to update kv")
	require.ErrorContains(t, r.Clear(ctx), "failed to clear kv")

	_, err = r.List(ctx)
	require.ErrorContains(t, err, "failed to list kv")
}
