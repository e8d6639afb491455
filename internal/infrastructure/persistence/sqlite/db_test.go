package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/pkg/database"
)

func openMigrated(t *testing.T) *DB {
	t.Helper()
	raw, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "tx.db"), MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	applied, err := database.NewMigrator(raw, zap.NewNop()).Run(context.Background(), Migrations())
	require.NoError(t, err)
	require.Greater(t, applied, 0)
	return NewDB(raw.DB, zap.NewNop())
}

func countUsers(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n))
	return n
}

func insertUser(ctx context.Context, db *DB, login string) error {
	_, err := Conn(ctx, db.DB).ExecContext(ctx,
		"INSERT INTO users (name, login, role, password_hash) VALUES (?, ?, 'issuer', 'x')", login, login)
	return err
}

func TestWithTransaction(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	tests := []struct {
		name      string
		fn        func(db *DB) func(ctx context.Context) error
		wantErr   error
		wantUsers int
	}{
		{
			name: "commit",
			fn: func(db *DB) func(ctx context.Context) error {
				return func(ctx context.Context) error { return insertUser(ctx, db, "ana") }
			},
			wantUsers: 1,
		},
		{
			name: "rollback on error",
			fn: func(db *DB) func(ctx context.Context) error {
				return func(ctx context.Context) error {
					if err := insertUser(ctx, db, "ana"); err != nil {
						return err
					}
					return boom
				}
			},
			wantErr:   boom,
			wantUsers: 0,
		},
		{
			name: "nested call joins outer transaction",
			fn: func(db *DB) func(ctx context.Context) error {
				return func(ctx context.Context) error {
					if err := insertUser(ctx, db, "ana"); err != nil {
						return err
					}
					if err := db.WithTransaction(ctx, func(ctx context.Context) error {
						return insertUser(ctx, db, "bia")
					}); err != nil {
						return err
					}
					return boom
				}
			},
			wantErr:   boom,
			wantUsers: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openMigrated(t)
			err := db.WithTransaction(ctx, tt.fn(db))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantUsers, countUsers(t, db))
		})
	}
}

func TestWithTransaction_RollsBackOnPanic(t *testing.T) {
	db := openMigrated(t)

	assert.Panics(t, func() {
		_ = db.WithTransaction(context.Background(), func(ctx context.Context) error {
			require.NoError(t, insertUser(ctx, db, "ana"))
			panic("scanner crashed")
		})
	})
	assert.Equal(t, 0, countUsers(t, db))
}

func TestConn_WithoutTransaction(t *testing.T) {
	db := openMigrated(t)
	assert.Equal(t, db.DB, Conn(context.Background(), db.DB))
}

func TestWithTransaction_BusyRetries(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}

	tests := []struct {
		name         string
		failures     int
		wantAttempts int
		wantUsers    int
		wantErr      bool
	}{
		{name: "recovers after contention", failures: 2, wantAttempts: 3, wantUsers: 1},
		{name: "gives up as transport error", failures: 100, wantAttempts: 4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openMigrated(t)
			db.busyBackoff = time.Millisecond
			attempts := 0

			err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
				attempts++
				if err := insertUser(ctx, db, "carrier"); err != nil {
					return err
				}
				if attempts <= tt.failures {
					return busy
				}
				return nil
			})

			assert.Equal(t, tt.wantAttempts, attempts)
			assert.Equal(t, tt.wantUsers, countUsers(t, db))
			if tt.wantErr {
				var transport *entity.TransportError
				require.ErrorAs(t, err, &transport)
				assert.True(t, entity.IsRetryable(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWithTransaction_OtherErrorsAreNotRetried(t *testing.T) {
	db := openMigrated(t)
	attempts := 0
	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		attempts++
		return entity.ErrInvalidTransition
	})
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)
	assert.Equal(t, 1, attempts)
}
