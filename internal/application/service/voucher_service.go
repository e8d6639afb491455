package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/river-voucher/internal/application/dispatcher"
	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/application/workflow"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/domain/event"
	"github.com/garyjia/river-voucher/internal/domain/vessel"
	domainwf "github.com/garyjia/river-voucher/internal/domain/workflow"
	"github.com/garyjia/river-voucher/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// VoucherService runs the requisition lifecycle on behalf of an explicit actor.
// Every illegal action detectable locally fails before the backend is called;
// the backend's answer is final and is re-read after every mutation.
type VoucherService interface {
	Create(ctx context.Context, actor entity.Actor, input entity.CreateVoucherInput) (*entity.Voucher, error)
	Get(ctx context.Context, id int64, actor entity.Actor) (*entity.Voucher, error)
	Authorize(ctx context.Context, id int64, decision entity.Decision, actor entity.Actor, reason string) (*entity.Voucher, error)
	Redeem(ctx context.Context, id int64, actor entity.Actor, scanSourceCode, location string) (*entity.Voucher, error)
	Resolve(ctx context.Context, raw string, actor entity.Actor) (*entity.Voucher, error)
	List(ctx context.Context, actor entity.Actor, filter entity.ListFilter) ([]*entity.Voucher, error)
	Actions(v *entity.Voucher, actor entity.Actor) []domainwf.Trigger
}

type voucherServiceImpl struct {
	gateway        port.RequisitionGateway
	engine         workflow.LifecycleEngine
	publisher      dispatcher.Publisher
	logger         Logger
	detailSegments []string
	now            func() time.Time
}

// VoucherOption configures the voucher service
type VoucherOption func(*voucherServiceImpl)

// WithDetailSegments sets the URL path segments recognised when resolving scanned links
func WithDetailSegments(segments []string) VoucherOption {
	return func(s *voucherServiceImpl) {
		if len(segments) > 0 {
			s.detailSegments = segments
		}
	}
}

// WithPublisher sets where lifecycle events are published
func WithPublisher(p dispatcher.Publisher) VoucherOption {
	return func(s *voucherServiceImpl) {
		s.publisher = p
	}
}

// NewVoucherService creates a new VoucherService
func NewVoucherService(
	gateway port.RequisitionGateway,
	engine workflow.LifecycleEngine,
	logger Logger,
	opts ...VoucherOption,
) VoucherService {
	s := &voucherServiceImpl{
		gateway:        gateway,
		engine:         engine,
		logger:         logger,
		detailSegments: DefaultDetailSegments,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create issues a new requisition in PENDING
func (s *voucherServiceImpl) Create(ctx context.Context, actor entity.Actor, input entity.CreateVoucherInput) (*entity.Voucher, error) {
	if !actor.Is(entity.RoleIssuer, entity.RoleAdmin) {
		return nil, fmt.Errorf("create requisition: %w", entity.ErrForbidden)
	}

	input, err := normalizeCreateInput(input)
	if err != nil {
		return nil, err
	}

	v, err := s.gateway.Create(ctx, actor, input)
	if err != nil {
		s.logger.Error("Failed to create requisition", "error", err, "actor_id", actor.ID)
		return nil, err
	}

	s.engine.Observe(v)
	s.publish(ctx, event.TypeVoucherCreated, v, actor, map[string]interface{}{
		"carrier_name": v.CarrierName,
	})
	s.logger.Info("Requisition created", "id", v.ID, "public_code", v.PublicCode, "actor_id", actor.ID)
	return v, nil
}

// Get fetches a requisition; carriers only see vouchers of their active vessel
func (s *voucherServiceImpl) Get(ctx context.Context, id int64, actor entity.Actor) (*entity.Voucher, error) {
	v, err := s.gateway.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := checkCarrierAccess(v, actor); err != nil {
		return nil, err
	}
	s.engine.Observe(v)
	return v, nil
}

// Authorize records a representative's decision on a pending requisition
func (s *voucherServiceImpl) Authorize(ctx context.Context, id int64, decision entity.Decision, actor entity.Actor, reason string) (*entity.Voucher, error) {
	if actor.Role != entity.RoleRepresentative {
		return nil, fmt.Errorf("authorize requisition %d: %w", id, entity.ErrForbidden)
	}
	if decision != entity.DecisionApprove && decision != entity.DecisionReject {
		return nil, fmt.Errorf("%w: unknown decision %q", entity.ErrInvalidInput, decision)
	}

	current, err := s.gateway.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	trigger := decision.Trigger()
	target, err := s.engine.Guard(current, trigger)
	if err != nil {
		s.engine.Observe(current)
		return nil, err
	}

	req := entity.AuthorizationRequest{
		Decision:           decision,
		ActorID:            actor.ID,
		RepresentativeName: actor.Name,
		RepresentativeCPF:  actor.CPF,
	}
	if decision == entity.DecisionReject {
		req.Reason = strings.TrimSpace(reason)
	}

	if err := s.gateway.Authorize(ctx, actor, id, req); err != nil {
		s.logger.Error("Authorization refused by backend", "error", err, "id", id, "decision", decision)
		s.refreshAfterFailure(ctx, actor, id, err)
		return nil, err
	}

	updated := s.refresh(ctx, actor, current, func(v *entity.Voucher) {
		v.Status = target
		v.RepresentativeName = actor.Name
		v.RepresentativeCPF = actor.CPF
		v.RejectionReason = req.Reason
	})

	eventType := event.TypeVoucherApproved
	if decision == entity.DecisionReject {
		eventType = event.TypeVoucherRejected
	}
	s.publish(ctx, eventType, updated, actor, map[string]interface{}{
		"previous_status": current.Status.String(),
		"new_status":      updated.Status.String(),
		"reason":          req.Reason,
	})
	s.logger.Info("Requisition authorized", "id", id, "decision", decision, "status", updated.Status, "actor_id", actor.ID)
	return updated, nil
}

// Redeem confirms the boarding of an approved voucher by the carrier it was issued for
func (s *voucherServiceImpl) Redeem(ctx context.Context, id int64, actor entity.Actor, scanSourceCode, location string) (*entity.Voucher, error) {
	if actor.Role != entity.RoleCarrier {
		return nil, fmt.Errorf("redeem requisition %d: %w", id, entity.ErrForbidden)
	}
	if strings.TrimSpace(actor.ActiveVessel) == "" {
		return nil, fmt.Errorf("redeem requisition %d: %w", id, entity.ErrNoActiveVessel)
	}

	current, err := s.gateway.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwnership(current, actor); err != nil {
		s.logger.Info("Redemption blocked by ownership", "id", id, "carrier", current.CarrierName, "active_vessel", actor.ActiveVessel)
		return nil, err
	}

	target, err := s.engine.Guard(current, domainwf.TriggerRedeem)
	if err != nil {
		s.engine.Observe(current)
		return nil, err
	}

	req := entity.RedemptionRequest{
		ActorID:        actor.ID,
		ScanSourceCode: strings.TrimSpace(scanSourceCode),
		Location:       strings.TrimSpace(location),
		Kind:           entity.RedemptionKindBoarding,
	}
	if req.ScanSourceCode == "" {
		req.ScanSourceCode = current.PublicCode
	}
	if req.Location == "" {
		req.Location = actor.ActiveVessel
	}

	if err := s.gateway.Redeem(ctx, actor, id, req); err != nil {
		s.logger.Error("Redemption failed", "error", err, "id", id, "retryable", entity.IsRetryable(err))
		s.refreshAfterFailure(ctx, actor, id, err)
		return nil, err
	}

	redeemedAt := s.now()
	updated := s.refresh(ctx, actor, current, func(v *entity.Voucher) {
		v.Status = target
		v.RedeemedAt = &redeemedAt
		v.RedeemedBy = actor.ID
		v.RedemptionLocation = req.Location
	})

	s.publish(ctx, event.TypeVoucherRedeemed, updated, actor, map[string]interface{}{
		"scan_source_code": req.ScanSourceCode,
		"location":         req.Location,
	})
	s.logger.Info("Requisition redeemed", "id", id, "actor_id", actor.ID, "vessel", actor.ActiveVessel)
	return updated, nil
}

// Resolve turns scanned or typed input into exactly one voucher the actor may see.
// A numeric reference is tried as an id before it is tried as a public code.
func (s *voucherServiceImpl) Resolve(ctx context.Context, raw string, actor entity.Actor) (*entity.Voucher, error) {
	ref := ParseReference(raw, s.detailSegments...)
	if ref.Empty() {
		return nil, fmt.Errorf("%w: empty reference", entity.ErrNotFound)
	}

	var (
		v   *entity.Voucher
		err error
	)
	if ref.Numeric {
		v, err = s.gateway.GetByID(ctx, actor, ref.ID)
		if errors.Is(err, entity.ErrNotFound) {
			v, err = s.gateway.GetByPublicCode(ctx, actor, ref.Identifier)
		}
	} else {
		v, err = s.gateway.GetByPublicCode(ctx, actor, ref.Identifier)
	}
	if err != nil {
		return nil, err
	}

	if err := checkCarrierAccess(v, actor); err != nil {
		s.logger.Info("Lookup blocked by ownership", "reference", ref.Identifier, "active_vessel", actor.ActiveVessel)
		return nil, err
	}

	s.engine.Observe(v)
	return v, nil
}

// List returns requisitions matching the filter; carriers are restricted to their active vessel
func (s *voucherServiceImpl) List(ctx context.Context, actor entity.Actor, filter entity.ListFilter) ([]*entity.Voucher, error) {
	if actor.Role == entity.RoleCarrier {
		if strings.TrimSpace(actor.ActiveVessel) == "" {
			return nil, entity.ErrNoActiveVessel
		}
		filter.CarrierName = actor.ActiveVessel
	}

	vouchers, err := s.gateway.List(ctx, actor, filter)
	if err != nil {
		return nil, err
	}

	if actor.Role == entity.RoleCarrier {
		owned := vouchers[:0]
		for _, v := range vouchers {
			if vessel.Same(v.CarrierName, actor.ActiveVessel) {
				owned = append(owned, v)
			}
		}
		vouchers = owned
	}
	return vouchers, nil
}

// Actions returns the lifecycle actions the actor may take on the voucher
func (s *voucherServiceImpl) Actions(v *entity.Voucher, actor entity.Actor) []domainwf.Trigger {
	return s.engine.Actions(v, actor)
}

// refresh re-reads the voucher after a successful mutation. If the re-read fails
// the mutation still happened, so the known outcome is applied to a copy.
func (s *voucherServiceImpl) refresh(ctx context.Context, actor entity.Actor, current *entity.Voucher, project func(*entity.Voucher)) *entity.Voucher {
	updated, err := s.gateway.GetByID(ctx, actor, current.ID)
	if err != nil {
		s.logger.Error("Failed to refresh requisition after update", "error", err, "id", current.ID)
		copied := *current
		project(&copied)
		updated = &copied
	}
	s.engine.Observe(updated)
	return updated
}

// refreshAfterFailure updates the observed state after the backend refused a mutation
func (s *voucherServiceImpl) refreshAfterFailure(ctx context.Context, actor entity.Actor, id int64, cause error) {
	if entity.IsRetryable(cause) {
		return
	}
	if v, err := s.gateway.GetByID(ctx, actor, id); err == nil {
		s.engine.Observe(v)
	}
}

func (s *voucherServiceImpl) publish(ctx context.Context, t event.Type, v *entity.Voucher, actor entity.Actor, payload map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, event.NewEvent(t, v.ID, v.PublicCode, actor.ID, payload).
		WithCorrelation(utils.RequestID(ctx)))
}

func checkOwnership(v *entity.Voucher, actor entity.Actor) error {
	if !vessel.Same(v.CarrierName, actor.ActiveVessel) {
		return &entity.OwnershipError{VoucherCarrier: v.CarrierName, ActiveVessel: actor.ActiveVessel}
	}
	return nil
}

func checkCarrierAccess(v *entity.Voucher, actor entity.Actor) error {
	if actor.Role != entity.RoleCarrier {
		return nil
	}
	if strings.TrimSpace(actor.ActiveVessel) == "" {
		return entity.ErrNoActiveVessel
	}
	return checkOwnership(v, actor)
}

func normalizeCreateInput(in entity.CreateVoucherInput) (entity.CreateVoucherInput, error) {
	in.PassengerName = utils.SanitizeString(in.PassengerName)
	in.Origin = utils.SanitizeString(in.Origin)
	in.Destination = utils.SanitizeString(in.Destination)
	in.CarrierName = utils.SanitizeString(in.CarrierName)
	in.Justification = utils.SanitizeString(in.Justification)
	in.PassengerRG = utils.SanitizeString(in.PassengerRG)
	in.DepartureDate = strings.TrimSpace(in.DepartureDate)

	var missing []string
	for field, value := range map[string]string{
		"passenger_name": in.PassengerName,
		"origin":         in.Origin,
		"destination":    in.Destination,
		"departure_date": in.DepartureDate,
		"carrier_name":   in.CarrierName,
	} {
		if value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return in, fmt.Errorf("%w: missing %s", entity.ErrInvalidInput, strings.Join(missing, ", "))
	}

	if err := utils.ValidateDate(in.DepartureDate); err != nil {
		return in, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}
	if in.PassengerCPF != "" {
		if err := utils.ValidateCPF(in.PassengerCPF); err != nil {
			return in, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
		}
		in.PassengerCPF = utils.DigitsOnly(in.PassengerCPF)
	}
	return in, nil
}
