package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/pkg/database"
)

type contextKey string

const txKey contextKey = "tx"

// DB wraps sql.DB and implements port.TransactionManager for the local store
type DB struct {
	*sql.DB
	busyRetries int
	busyBackoff time.Duration
	logger      *zap.Logger
}

// Option configures a DB
type Option func(*DB)

// WithBusyRetries sets how often a transaction is re-run after lock contention
func WithBusyRetries(n int, backoff time.Duration) Option {
	return func(db *DB) {
		db.busyRetries = n
		db.busyBackoff = backoff
	}
}

// NewDB creates a new transaction manager over sqlDB
func NewDB(sqlDB *sql.DB, logger *zap.Logger, opts ...Option) *DB {
	db := &DB{
		DB:          sqlDB,
		busyRetries: 3,
		busyBackoff: 50 * time.Millisecond,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// WithTransaction implements port.TransactionManager.
// Nested calls join the transaction already carried by ctx. A top-level
// transaction that loses a lock race is re-run from the start; when the store
// stays locked the failure is reported as a retryable TransportError.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := extractTx(ctx); tx != nil {
		return fn(ctx)
	}

	var err error
	for attempt := 0; attempt <= db.busyRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(db.busyBackoff * time.Duration(attempt)):
			}
		}
		err = db.run(ctx, fn)
		if err == nil || !database.IsBusy(err) {
			return err
		}
		db.logger.Warn("Local store busy, retrying transaction", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return &entity.TransportError{Op: "local store", Err: err}
}

func (db *DB) run(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func extractTx(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey).(*sql.Tx)
	return tx
}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Conn returns the transaction carried by ctx, or db when there is none.
// Repositories call it so they join WithTransaction transparently.
func Conn(ctx context.Context, db *sql.DB) Executor {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return db
}

var _ port.TransactionManager = (*DB)(nil)
