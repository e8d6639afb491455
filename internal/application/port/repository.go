package port

import (
	"context"
	"time"

	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/domain/workflow"
)

// VoucherRepository defines persistence operations for vouchers in the local store
type VoucherRepository interface {
	Create(ctx context.Context, voucher *entity.Voucher) error
	GetByID(ctx context.Context, id int64) (*entity.Voucher, error)
	GetByPublicCode(ctx context.Context, code string) (*entity.Voucher, error)
	PublicCodeExists(ctx context.Context, code string) (bool, error)
	NextSequence(ctx context.Context, year int) (int, error)

	// CompareAndSetStatus moves the voucher from `from` to `to` only if it is still in `from`.
	// It reports false when another writer got there first.
	CompareAndSetStatus(ctx context.Context, id int64, from, to workflow.State, change StatusChange) (bool, error)

	List(ctx context.Context, filter entity.ListFilter) ([]*entity.Voucher, error)
}

// StatusChange carries the columns written alongside a status transition
type StatusChange struct {
	At                 time.Time
	ActorID            string
	RejectionReason    string
	RepresentativeName string
	RepresentativeCPF  string
	RedemptionLocation string
}

// HistoryRepository defines persistence operations for VoucherHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.VoucherHistory) error
	GetByVoucherID(ctx context.Context, voucherID int64) ([]*entity.VoucherHistory, error)
}

// RedemptionRepository records boardings. At most one redemption exists per voucher.
type RedemptionRepository interface {
	Create(ctx context.Context, redemption *entity.Redemption) error
	GetByVoucherID(ctx context.Context, voucherID int64) (*entity.Redemption, error)
}

// UserRepository defines persistence operations for local operator accounts
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByLogin(ctx context.Context, login string) (*entity.User, error)
	Count(ctx context.Context) (int, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
