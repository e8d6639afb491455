package port

import (
	"context"

	"github.com/garyjia/river-voucher/internal/domain/entity"
)

// RequisitionGateway is the authoritative backend for requisitions.
// It is served by the municipal REST API or, offline, by the local SQLite store.
// Implementations translate their failures into the entity error taxonomy.
type RequisitionGateway interface {
	Create(ctx context.Context, actor entity.Actor, input entity.CreateVoucherInput) (*entity.Voucher, error)
	GetByID(ctx context.Context, actor entity.Actor, id int64) (*entity.Voucher, error)
	GetByPublicCode(ctx context.Context, actor entity.Actor, code string) (*entity.Voucher, error)
	Authorize(ctx context.Context, actor entity.Actor, id int64, req entity.AuthorizationRequest) error
	Redeem(ctx context.Context, actor entity.Actor, id int64, req entity.RedemptionRequest) error
	List(ctx context.Context, actor entity.Actor, filter entity.ListFilter) ([]*entity.Voucher, error)
}

// Authenticator verifies operator credentials against the backend
type Authenticator interface {
	// Authenticate returns the matching user or entity.ErrUnauthenticated
	Authenticate(ctx context.Context, login, password string) (*entity.User, error)
}
