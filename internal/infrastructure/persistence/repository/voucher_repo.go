package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/domain/workflow"
	"github.com/garyjia/river-voucher/internal/infrastructure/persistence/sqlite"
)

const voucherColumns = `
	id, public_code, number, status, issuer_id, representative_name, representative_cpf,
	passenger_name, passenger_cpf, passenger_rg, requester_kind,
	origin, destination, departure_date, justification, carrier_name,
	created_at, decided_at, rejection_reason, redeemed_at, redeemed_by, redemption_location`

// VoucherRepository implements port.VoucherRepository
type VoucherRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVoucherRepository creates a new voucher repository
func NewVoucherRepository(db *sql.DB, logger *zap.Logger) port.VoucherRepository {
	return &VoucherRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a voucher. Number must be in SEQ/YEAR form.
func (r *VoucherRepository) Create(ctx context.Context, v *entity.Voucher) error {
	var seq, year int
	if _, err := fmt.Sscanf(v.Number, "%d/%d", &seq, &year); err != nil {
		return fmt.Errorf("%w: bad voucher number %q", entity.ErrInvalidInput, v.Number)
	}

	query := `
		INSERT INTO vouchers (
			public_code, number, year, sequence, status, issuer_id,
			representative_name, representative_cpf,
			passenger_name, passenger_cpf, passenger_rg, requester_kind,
			origin, destination, departure_date, justification, carrier_name, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		v.PublicCode,
		v.Number,
		year,
		seq,
		v.Status.String(),
		v.IssuerID,
		v.RepresentativeName,
		v.RepresentativeCPF,
		v.PassengerName,
		v.PassengerCPF,
		v.PassengerRG,
		v.RequesterKind,
		v.Origin,
		v.Destination,
		v.DepartureDate,
		v.Justification,
		v.CarrierName,
		v.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create voucher", zap.Error(err))
		return fmt.Errorf("failed to create voucher: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	v.ID = id
	return nil
}

// GetByID retrieves a voucher by ID
func (r *VoucherRepository) GetByID(ctx context.Context, id int64) (*entity.Voucher, error) {
	row := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE id = ?`, id)
	v, err := scanVoucher(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("requisition %d: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get voucher", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return v, nil
}

// GetByPublicCode retrieves a voucher by its public code
func (r *VoucherRepository) GetByPublicCode(ctx context.Context, code string) (*entity.Voucher, error) {
	row := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE public_code = ?`, code)
	v, err := scanVoucher(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("public code %q: %w", code, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return v, nil
}

// PublicCodeExists reports whether the code is already taken
func (r *VoucherRepository) PublicCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT COUNT(1) FROM vouchers WHERE public_code = ?`, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check public code: %w", err)
	}
	return n > 0, nil
}

// NextSequence returns the next voucher sequence of the given year
func (r *VoucherRepository) NextSequence(ctx context.Context, year int) (int, error) {
	var next int
	err := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM vouchers WHERE year = ?`, year).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to get next sequence: %w", err)
	}
	return next, nil
}

// CompareAndSetStatus updates the status only if the row is still in `from`
func (r *VoucherRepository) CompareAndSetStatus(ctx context.Context, id int64, from, to workflow.State, change port.StatusChange) (bool, error) {
	var (
		query string
		args  []interface{}
	)
	switch to {
	case workflow.StateApproved, workflow.StateRejected:
		query = `
			UPDATE vouchers
			SET status = ?, decided_at = ?, rejection_reason = ?,
				representative_name = COALESCE(NULLIF(?, ''), representative_name),
				representative_cpf = COALESCE(NULLIF(?, ''), representative_cpf)
			WHERE id = ? AND status = ?
		`
		args = []interface{}{to.String(), change.At.UTC(), change.RejectionReason,
			change.RepresentativeName, change.RepresentativeCPF, id, from.String()}
	case workflow.StateRedeemed:
		query = `
			UPDATE vouchers
			SET status = ?, redeemed_at = ?, redeemed_by = ?, redemption_location = ?
			WHERE id = ? AND status = ?
		`
		args = []interface{}{to.String(), change.At.UTC(), change.ActorID, change.RedemptionLocation, id, from.String()}
	default:
		return false, fmt.Errorf("%w: cannot move to %s", entity.ErrInvalidTransition, to)
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update voucher status", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to update status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// List returns vouchers matching status, creation dates and public code, newest first.
// Carrier and free-text filters need normalisation and are applied by the caller.
func (r *VoucherRepository) List(ctx context.Context, filter entity.ListFilter) ([]*entity.Voucher, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status.String())
	}
	if filter.CreatedFrom != nil {
		where = append(where, "substr(created_at, 1, 10) >= ?")
		args = append(args, filter.CreatedFrom.Format(entity.DateLayout))
	}
	if filter.CreatedTo != nil {
		where = append(where, "substr(created_at, 1, 10) <= ?")
		args = append(args, filter.CreatedTo.Format(entity.DateLayout))
	}
	if filter.PublicCode != "" {
		where = append(where, "public_code = ?")
		args = append(args, filter.PublicCode)
	}

	query := `SELECT ` + voucherColumns + ` FROM vouchers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list vouchers", zap.Error(err))
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []*entity.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voucher: %w", err)
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVoucher(row rowScanner) (*entity.Voucher, error) {
	var (
		v          entity.Voucher
		status     string
		decidedAt  sql.NullTime
		redeemedAt sql.NullTime
	)
	err := row.Scan(
		&v.ID,
		&v.PublicCode,
		&v.Number,
		&status,
		&v.IssuerID,
		&v.RepresentativeName,
		&v.RepresentativeCPF,
		&v.PassengerName,
		&v.PassengerCPF,
		&v.PassengerRG,
		&v.RequesterKind,
		&v.Origin,
		&v.Destination,
		&v.DepartureDate,
		&v.Justification,
		&v.CarrierName,
		&v.CreatedAt,
		&decidedAt,
		&v.RejectionReason,
		&redeemedAt,
		&v.RedeemedBy,
		&v.RedemptionLocation,
	)
	if err != nil {
		return nil, err
	}

	v.Status = workflow.State(status)
	if decidedAt.Valid {
		v.DecidedAt = &decidedAt.Time
	}
	if redeemedAt.Valid {
		v.RedeemedAt = &redeemedAt.Time
	}
	return &v, nil
}

func (r *VoucherRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// Verify interface compliance
var _ port.VoucherRepository = (*VoucherRepository)(nil)
