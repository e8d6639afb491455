// Package local serves the requisition gateway from the SQLite store when the
// municipal backend is not available.
package local

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/application/workflow"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/domain/vessel"
	domainwf "github.com/garyjia/river-voucher/internal/domain/workflow"
	"github.com/garyjia/river-voucher/pkg/utils"
)

const (
	publicCodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	publicCodeLength   = 8
	maxCodeAttempts    = 10
)

// ErrCodeSpaceExhausted is returned when no free public code was found
var ErrCodeSpaceExhausted = errors.New("could not allocate a unique public code")

// Repositories groups the stores the gateway writes to
type Repositories struct {
	Vouchers    port.VoucherRepository
	History     port.HistoryRepository
	Redemptions port.RedemptionRepository
	Users       port.UserRepository
}

// Gateway implements port.RequisitionGateway and port.Authenticator on the local store.
// It enforces the lifecycle itself with conditional updates.
type Gateway struct {
	repos  Repositories
	txm    port.TransactionManager
	now    func() time.Time
	code   func() (string, error)
	logger *zap.Logger
}

// Option configures a Gateway
type Option func(*Gateway)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithCodeGenerator overrides the public code generator
func WithCodeGenerator(fn func() (string, error)) Option {
	return func(g *Gateway) {
		g.code = fn
	}
}

// NewGateway creates a new local gateway
func NewGateway(repos Repositories, txm port.TransactionManager, logger *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		repos:  repos,
		txm:    txm,
		now:    time.Now,
		code:   RandomPublicCode,
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var (
	_ port.RequisitionGateway = (*Gateway)(nil)
	_ port.Authenticator      = (*Gateway)(nil)
)

// RandomPublicCode returns 8 lowercase alphanumeric characters
func RandomPublicCode() (string, error) {
	var sb strings.Builder
	base := big.NewInt(int64(len(publicCodeAlphabet)))
	for i := 0; i < publicCodeLength; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		sb.WriteByte(publicCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// Create stores a new pending requisition numbered SEQ/YEAR
func (g *Gateway) Create(ctx context.Context, actor entity.Actor, input entity.CreateVoucherInput) (*entity.Voucher, error) {
	if !actor.Is(entity.RoleIssuer, entity.RoleAdmin) {
		return nil, fmt.Errorf("create requisition: %w", entity.ErrForbidden)
	}

	now := g.now()
	var created *entity.Voucher
	err := g.txm.WithTransaction(ctx, func(ctx context.Context) error {
		seq, err := g.repos.Vouchers.NextSequence(ctx, now.Year())
		if err != nil {
			return err
		}
		code, err := g.freeCode(ctx)
		if err != nil {
			return err
		}

		v := &entity.Voucher{
			PublicCode:         code,
			Number:             fmt.Sprintf("%d/%d", seq, now.Year()),
			Status:             domainwf.StatePending,
			IssuerID:           actor.ID,
			RepresentativeName: input.RepresentativeName,
			PassengerName:      input.PassengerName,
			PassengerCPF:       input.PassengerCPF,
			PassengerRG:        input.PassengerRG,
			RequesterKind:      input.RequesterKind,
			Origin:             input.Origin,
			Destination:        input.Destination,
			DepartureDate:      input.DepartureDate,
			Justification:      input.Justification,
			CarrierName:        input.CarrierName,
			CreatedAt:          now,
		}
		if err := g.repos.Vouchers.Create(ctx, v); err != nil {
			return err
		}
		if err := g.record(ctx, v.ID, actor.ID, "", domainwf.StatePending, "CREATE", map[string]interface{}{
			"public_code": v.PublicCode,
			"number":      v.Number,
		}); err != nil {
			return err
		}

		created, err = g.repos.Vouchers.GetByID(ctx, v.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	g.logger.Info("Requisition stored",
		zap.Int64("id", created.ID),
		zap.String("number", created.Number),
		zap.String("public_code", created.PublicCode))
	return created, nil
}

func (g *Gateway) freeCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := g.code()
		if err != nil {
			return "", fmt.Errorf("generate public code: %w", err)
		}
		// all-digit codes would be read as ids by reference lookups
		if allDigits(code) {
			continue
		}
		taken, err := g.repos.Vouchers.PublicCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func allDigits(code string) bool {
	if code == "" {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// GetByID fetches a requisition by id
func (g *Gateway) GetByID(ctx context.Context, actor entity.Actor, id int64) (*entity.Voucher, error) {
	return g.repos.Vouchers.GetByID(ctx, id)
}

// GetByPublicCode fetches a requisition by public code
func (g *Gateway) GetByPublicCode(ctx context.Context, actor entity.Actor, code string) (*entity.Voucher, error) {
	return g.repos.Vouchers.GetByPublicCode(ctx, strings.TrimSpace(code))
}

// Authorize applies a representative's decision if the requisition is still pending
func (g *Gateway) Authorize(ctx context.Context, actor entity.Actor, id int64, req entity.AuthorizationRequest) error {
	if actor.Role != entity.RoleRepresentative {
		return fmt.Errorf("authorize requisition %d: %w", id, entity.ErrForbidden)
	}

	trigger := req.Decision.Trigger()
	return g.txm.WithTransaction(ctx, func(ctx context.Context) error {
		v, to, err := g.guard(ctx, id, trigger)
		if err != nil {
			return err
		}

		change := port.StatusChange{
			At:                 g.now(),
			ActorID:            req.ActorID,
			RepresentativeName: req.RepresentativeName,
			RepresentativeCPF:  req.RepresentativeCPF,
		}
		if req.Decision == entity.DecisionReject {
			change.RejectionReason = req.Reason
		}
		if err := g.transition(ctx, v, trigger, to, change); err != nil {
			return err
		}
		return g.record(ctx, id, req.ActorID, v.Status, to, trigger.String(), map[string]interface{}{
			"reason":              req.Reason,
			"representative_name": req.RepresentativeName,
		})
	})
}

// Redeem consumes an approved voucher for the carrier's active vessel
func (g *Gateway) Redeem(ctx context.Context, actor entity.Actor, id int64, req entity.RedemptionRequest) error {
	if actor.Role != entity.RoleCarrier {
		return fmt.Errorf("redeem requisition %d: %w", id, entity.ErrForbidden)
	}

	return g.txm.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := g.repos.Vouchers.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !vessel.Same(current.CarrierName, actor.ActiveVessel) {
			return &entity.OwnershipError{VoucherCarrier: current.CarrierName, ActiveVessel: actor.ActiveVessel}
		}

		v, to, err := g.guard(ctx, id, domainwf.TriggerRedeem)
		if err != nil {
			return err
		}

		at := g.now()
		if err := g.transition(ctx, v, domainwf.TriggerRedeem, to, port.StatusChange{
			At:                 at,
			ActorID:            req.ActorID,
			RedemptionLocation: req.Location,
		}); err != nil {
			return err
		}

		kind := req.Kind
		if kind == "" {
			kind = entity.RedemptionKindBoarding
		}
		if err := g.repos.Redemptions.Create(ctx, &entity.Redemption{
			VoucherID:      id,
			ActorID:        req.ActorID,
			ScanSourceCode: req.ScanSourceCode,
			Kind:           kind,
			Location:       req.Location,
			Note:           req.Note,
			RedeemedAt:     at,
		}); err != nil {
			return err
		}
		return g.record(ctx, id, req.ActorID, v.Status, to, domainwf.TriggerRedeem.String(), map[string]interface{}{
			"scan_source_code": req.ScanSourceCode,
			"location":         req.Location,
			"kind":             kind,
		})
	})
}

// guard loads the voucher and resolves the target state of trigger
func (g *Gateway) guard(ctx context.Context, id int64, trigger domainwf.Trigger) (*entity.Voucher, domainwf.State, error) {
	v, err := g.repos.Vouchers.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	to, err := workflow.BuildVoucherStateMachine(v.Status).Target(trigger)
	if err != nil {
		return nil, "", entity.NewTransitionError(id, v.Status, trigger)
	}
	return v, to, nil
}

// transition performs the conditional update; losing a race reports the state that won
func (g *Gateway) transition(ctx context.Context, v *entity.Voucher, trigger domainwf.Trigger, to domainwf.State, change port.StatusChange) error {
	ok, err := g.repos.Vouchers.CompareAndSetStatus(ctx, v.ID, v.Status, to, change)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	latest, err := g.repos.Vouchers.GetByID(ctx, v.ID)
	if err != nil {
		return err
	}
	g.logger.Warn("Concurrent status change",
		zap.Int64("id", v.ID),
		zap.String("expected", v.Status.String()),
		zap.String("actual", latest.Status.String()))
	return entity.NewTransitionError(v.ID, latest.Status, trigger)
}

func (g *Gateway) record(ctx context.Context, id int64, actorID string, from, to domainwf.State, action string, data map[string]interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal history data: %w", err)
	}
	return g.repos.History.Create(ctx, &entity.VoucherHistory{
		VoucherID:      id,
		ActorID:        actorID,
		PreviousStatus: from.String(),
		NewStatus:      to.String(),
		ActionType:     action,
		ActionData:     string(raw),
		Timestamp:      g.now(),
	})
}

// List returns requisitions matching the filter, newest first
func (g *Gateway) List(ctx context.Context, actor entity.Actor, filter entity.ListFilter) ([]*entity.Voucher, error) {
	vouchers, err := g.repos.Vouchers.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	query := vessel.Fold(filter.Query)
	out := make([]*entity.Voucher, 0, len(vouchers))
	for _, v := range vouchers {
		if filter.CarrierName != "" && !vessel.Same(v.CarrierName, filter.CarrierName) {
			continue
		}
		if query != "" && !strings.Contains(vessel.Fold(strings.Join([]string{
			v.Number, v.PublicCode, v.PassengerName, v.Origin, v.Destination, v.CarrierName,
		}, " ")), query) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Authenticate checks a login and password against the users table
func (g *Gateway) Authenticate(ctx context.Context, login, password string) (*entity.User, error) {
	u, err := g.repos.Users.GetByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("login %q: %w", login, entity.ErrUnauthenticated)
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPasswordHash(password, u.PasswordHash) {
		return nil, fmt.Errorf("login %q: %w", login, entity.ErrUnauthenticated)
	}
	return u, nil
}
