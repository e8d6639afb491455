package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.VoucherHistory) error {
	if history.Timestamp.IsZero() {
		history.Timestamp = time.Now()
	}

	query := `
		INSERT INTO voucher_history (
			voucher_id, actor_id, previous_status, new_status,
			action_type, action_data, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		history.VoucherID,
		history.ActorID,
		history.PreviousStatus,
		history.NewStatus,
		history.ActionType,
		history.ActionData,
		history.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// GetByVoucherID retrieves all history records for a voucher, oldest first
func (r *HistoryRepository) GetByVoucherID(ctx context.Context, voucherID int64) ([]*entity.VoucherHistory, error) {
	query := `
		SELECT id, voucher_id, actor_id, previous_status, new_status,
			action_type, action_data, timestamp
		FROM voucher_history
		WHERE voucher_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, voucherID)
	if err != nil {
		r.logger.Error("Failed to get history by voucher ID", zap.Int64("voucher_id", voucherID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.VoucherHistory
	for rows.Next() {
		var record entity.VoucherHistory
		err := rows.Scan(
			&record.ID,
			&record.VoucherID,
			&record.ActorID,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.ActionType,
			&record.ActionData,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
