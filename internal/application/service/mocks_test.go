package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/domain/event"
	"github.com/garyjia/river-voucher/internal/domain/vessel"
	domainwf "github.com/garyjia/river-voucher/internal/domain/workflow"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

// mockGateway lets each test override single calls
type mockGateway struct {
	createFunc          func(ctx context.Context, actor entity.Actor, input entity.CreateVoucherInput) (*entity.Voucher, error)
	getByIDFunc         func(ctx context.Context, actor entity.Actor, id int64) (*entity.Voucher, error)
	getByPublicCodeFunc func(ctx context.Context, actor entity.Actor, code string) (*entity.Voucher, error)
	authorizeFunc       func(ctx context.Context, actor entity.Actor, id int64, req entity.AuthorizationRequest) error
	redeemFunc          func(ctx context.Context, actor entity.Actor, id int64, req entity.RedemptionRequest) error
	listFunc            func(ctx context.Context, actor entity.Actor, filter entity.ListFilter) ([]*entity.Voucher, error)

	authorizeCalls int
	redeemCalls    int
}

func (m *mockGateway) Create(ctx context.Context, actor entity.Actor, input entity.CreateVoucherInput) (*entity.Voucher, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, actor, input)
	}
	return &entity.Voucher{ID: 1, PublicCode: "abc12345", Status: domainwf.StatePending, CarrierName: input.CarrierName}, nil
}

func (m *mockGateway) GetByID(ctx context.Context, actor entity.Actor, id int64) (*entity.Voucher, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, actor, id)
	}
	return nil, entity.ErrNotFound
}

func (m *mockGateway) GetByPublicCode(ctx context.Context, actor entity.Actor, code string) (*entity.Voucher, error) {
	if m.getByPublicCodeFunc != nil {
		return m.getByPublicCodeFunc(ctx, actor, code)
	}
	return nil, entity.ErrNotFound
}

func (m *mockGateway) Authorize(ctx context.Context, actor entity.Actor, id int64, req entity.AuthorizationRequest) error {
	m.authorizeCalls++
	if m.authorizeFunc != nil {
		return m.authorizeFunc(ctx, actor, id, req)
	}
	return nil
}

func (m *mockGateway) Redeem(ctx context.Context, actor entity.Actor, id int64, req entity.RedemptionRequest) error {
	m.redeemCalls++
	if m.redeemFunc != nil {
		return m.redeemFunc(ctx, actor, id, req)
	}
	return nil
}

func (m *mockGateway) List(ctx context.Context, actor entity.Actor, filter entity.ListFilter) ([]*entity.Voucher, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, actor, filter)
	}
	return []*entity.Voucher{}, nil
}

// fakeBackend is an in-memory authoritative server used by scenario tests.
// It enforces the lifecycle and ownership independently of the client-side checks.
type fakeBackend struct {
	mu       sync.Mutex
	vouchers map[int64]*entity.Voucher
	nextID   int64
	calls    map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{vouchers: make(map[int64]*entity.Voucher), nextID: 481, calls: make(map[string]int)}
}

func (f *fakeBackend) put(v entity.Voucher) *entity.Voucher {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := v
	f.vouchers[v.ID] = &stored
	return &stored
}

func (f *fakeBackend) Create(ctx context.Context, actor entity.Actor, input entity.CreateVoucherInput) (*entity.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create"]++
	f.nextID++
	v := &entity.Voucher{
		ID:            f.nextID,
		PublicCode:    fmt.Sprintf("pc%06d", f.nextID),
		Status:        domainwf.StatePending,
		IssuerID:      actor.ID,
		PassengerName: input.PassengerName,
		PassengerCPF:  input.PassengerCPF,
		Origin:        input.Origin,
		Destination:   input.Destination,
		DepartureDate: input.DepartureDate,
		CarrierName:   input.CarrierName,
		CreatedAt:     time.Now(),
	}
	f.vouchers[v.ID] = v
	copied := *v
	return &copied, nil
}

func (f *fakeBackend) GetByID(ctx context.Context, actor entity.Actor, id int64) (*entity.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get"]++
	v, ok := f.vouchers[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (f *fakeBackend) GetByPublicCode(ctx context.Context, actor entity.Actor, code string) (*entity.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get_code"]++
	for _, v := range f.vouchers {
		if strings.EqualFold(v.PublicCode, code) {
			copied := *v
			return &copied, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (f *fakeBackend) Authorize(ctx context.Context, actor entity.Actor, id int64, req entity.AuthorizationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["authorize"]++
	v, ok := f.vouchers[id]
	if !ok {
		return entity.ErrNotFound
	}
	if v.Status != domainwf.StatePending {
		return entity.NewTransitionError(id, v.Status, req.Decision.Trigger())
	}
	now := time.Now()
	v.DecidedAt = &now
	v.RepresentativeName = req.RepresentativeName
	if req.Decision == entity.DecisionApprove {
		v.Status = domainwf.StateApproved
	} else {
		v.Status = domainwf.StateRejected
		v.RejectionReason = req.Reason
	}
	return nil
}

func (f *fakeBackend) Redeem(ctx context.Context, actor entity.Actor, id int64, req entity.RedemptionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["redeem"]++
	v, ok := f.vouchers[id]
	if !ok {
		return entity.ErrNotFound
	}
	if !vessel.Same(v.CarrierName, actor.ActiveVessel) {
		return &entity.OwnershipError{VoucherCarrier: v.CarrierName, ActiveVessel: actor.ActiveVessel}
	}
	if v.Status != domainwf.StateApproved {
		return entity.NewTransitionError(id, v.Status, domainwf.TriggerRedeem)
	}
	now := time.Now()
	v.Status = domainwf.StateRedeemed
	v.RedeemedAt = &now
	v.RedeemedBy = req.ActorID
	v.RedemptionLocation = req.Location
	return nil
}

func (f *fakeBackend) List(ctx context.Context, actor entity.Actor, filter entity.ListFilter) ([]*entity.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]*entity.Voucher, 0, len(f.vouchers))
	for _, v := range f.vouchers {
		copied := *v
		result = append(result, &copied)
	}
	return result, nil
}

func (f *fakeBackend) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evt *event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]event.Type, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}
