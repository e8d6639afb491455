package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/infrastructure/persistence/sqlite"
)

// RedemptionRepository implements port.RedemptionRepository
type RedemptionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRedemptionRepository creates a new redemption repository
func NewRedemptionRepository(db *sql.DB, logger *zap.Logger) port.RedemptionRepository {
	return &RedemptionRepository{
		db:     db,
		logger: logger,
	}
}

// Create records a boarding. The voucher_id unique constraint rejects a second one.
func (r *RedemptionRepository) Create(ctx context.Context, red *entity.Redemption) error {
	query := `
		INSERT INTO redemptions (
			voucher_id, actor_id, scan_source_code, kind, location, note, redeemed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		red.VoucherID,
		red.ActorID,
		red.ScanSourceCode,
		red.Kind,
		red.Location,
		red.Note,
		red.RedeemedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create redemption", zap.Int64("voucher_id", red.VoucherID), zap.Error(err))
		return fmt.Errorf("failed to create redemption: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	red.ID = id
	return nil
}

// GetByVoucherID returns the redemption of a voucher or entity.ErrNotFound
func (r *RedemptionRepository) GetByVoucherID(ctx context.Context, voucherID int64) (*entity.Redemption, error) {
	query := `
		SELECT id, voucher_id, actor_id, scan_source_code, kind, location, note, redeemed_at
		FROM redemptions
		WHERE voucher_id = ?
	`

	var red entity.Redemption
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, voucherID).Scan(
		&red.ID,
		&red.VoucherID,
		&red.ActorID,
		&red.ScanSourceCode,
		&red.Kind,
		&red.Location,
		&red.Note,
		&red.RedeemedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("redemption of %d: %w", voucherID, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get redemption: %w", err)
	}
	return &red, nil
}

func (r *RedemptionRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.RedemptionRepository = (*RedemptionRepository)(nil)
