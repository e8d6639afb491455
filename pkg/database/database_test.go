package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "data", "test.db"), MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrator_RunAppliesOnce(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"002_add_note.sql": {Data: []byte("ALTER TABLE sample ADD COLUMN note TEXT;")},
		"001_sample.sql":   {Data: []byte("CREATE TABLE sample (id INTEGER PRIMARY KEY);")},
		"README.md":        {Data: []byte("ignored")},
	}
	migrator := NewMigrator(db, zap.NewNop())

	applied, err := migrator.Run(context.Background(), fsys)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = migrator.Run(context.Background(), fsys)
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	_, err = db.Exec("INSERT INTO sample (id, note) VALUES (1, 'ok')")
	assert.NoError(t, err)
}

func TestLoadMigrations_Errors(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{"initial.sql": {Data: []byte("SELECT 1;")}})
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 2;")},
	})
	assert.ErrorContains(t, err, "duplicate migration version 1")
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec("CREATE TABLE counter (n INTEGER)")
	require.NoError(t, err)

	err = db.WithTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO counter (n) VALUES (1)"); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM counter").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.True(t, IsBusy(fmt.Errorf("redeem: %w", sqlite3.Error{Code: sqlite3.ErrLocked})))
	assert.False(t, IsBusy(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, IsBusy(sql.ErrNoRows))
	assert.False(t, IsBusy(nil))
}
