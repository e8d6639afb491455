package scanner

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/application/service"
	"github.com/garyjia/river-voucher/internal/application/workflow"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	domainwf "github.com/garyjia/river-voucher/internal/domain/workflow"
)

type mockVoucherService struct {
	resolveFunc func(ctx context.Context, raw string, actor entity.Actor) (*entity.Voucher, error)
	redeemFunc  func(ctx context.Context, id int64, actor entity.Actor, scanSourceCode, location string) (*entity.Voucher, error)
	getFunc     func(ctx context.Context, id int64, actor entity.Actor) (*entity.Voucher, error)
}

func (m *mockVoucherService) Create(ctx context.Context, actor entity.Actor, input entity.CreateVoucherInput) (*entity.Voucher, error) {
	return nil, fmt.Errorf("unexpected call")
}

func (m *mockVoucherService) Get(ctx context.Context, id int64, actor entity.Actor) (*entity.Voucher, error) {
	if m.getFunc == nil {
		return nil, fmt.Errorf("unexpected call")
	}
	return m.getFunc(ctx, id, actor)
}

func (m *mockVoucherService) Authorize(ctx context.Context, id int64, decision entity.Decision, actor entity.Actor, reason string) (*entity.Voucher, error) {
	return nil, fmt.Errorf("unexpected call")
}

func (m *mockVoucherService) Redeem(ctx context.Context, id int64, actor entity.Actor, scanSourceCode, location string) (*entity.Voucher, error) {
	return m.redeemFunc(ctx, id, actor, scanSourceCode, location)
}

func (m *mockVoucherService) Resolve(ctx context.Context, raw string, actor entity.Actor) (*entity.Voucher, error) {
	return m.resolveFunc(ctx, raw, actor)
}

func (m *mockVoucherService) List(ctx context.Context, actor entity.Actor, filter entity.ListFilter) ([]*entity.Voucher, error) {
	return nil, fmt.Errorf("unexpected call")
}

func (m *mockVoucherService) Actions(v *entity.Voucher, actor entity.Actor) []domainwf.Trigger {
	return nil
}

var carrier = entity.Actor{ID: "7", Role: entity.RoleCarrier, ActiveVessel: "B/M Tio Gracy"}

func redeemedBy(id int64, actorID string) *entity.Voucher {
	v := approved(id)
	v.Status = domainwf.StateRedeemed
	v.RedeemedBy = actorID
	return v
}

func approved(id int64) *entity.Voucher {
	return &entity.Voucher{
		ID: id, Number: fmt.Sprintf("%d/2026", id), PublicCode: "k3v9x2ab", Status: domainwf.StateApproved,
		PassengerName: "Maria Souza", Destination: "Manaus", CarrierName: "B/M Tio Gracy",
	}
}

func newTestStation(svc *mockVoucherService, input string, out *bytes.Buffer) *Station {
	session := NewSession(NewLineCamera(strings.NewReader(input)), zap.NewNop())
	return NewStation(svc, session, carrier, out, StationConfig{MaxAttempts: 3, Backoff: time.Millisecond}, zap.NewNop())
}

func TestStation_Run(t *testing.T) {
	transport := &entity.TransportError{Op: "redeem", Err: fmt.Errorf("connection reset")}

	tests := []struct {
		name        string
		resolveErrs []error
		redeemErrs  []error
		getErrs     []error
		afterFail   *entity.Voucher
		wantOut     string
		wantResolve int
		wantRedeem  int
		wantGet     int
	}{
		{
			name:        "redeemed",
			wantOut:     "OK 1/2026 Maria Souza -> Manaus (k3v9x2ab)",
			wantResolve: 1,
			wantRedeem:  1,
		},
		{
			name:        "transport failure on redeem is not resent",
			redeemErrs:  []error{transport},
			afterFail:   approved(1),
			wantOut:     "Erro ao comunicar com o servidor",
			wantResolve: 1,
			wantRedeem:  1,
			wantGet:     1,
		},
		{
			name:        "transport failure then redeemed by this carrier",
			redeemErrs:  []error{transport},
			afterFail:   redeemedBy(1, "7"),
			wantOut:     "OK 1/2026 Maria Souza",
			wantResolve: 1,
			wantRedeem:  1,
			wantGet:     1,
		},
		{
			name:        "transport failure then redeemed by someone else",
			redeemErrs:  []error{transport},
			afterFail:   redeemedBy(1, "9"),
			wantOut:     "Erro ao comunicar com o servidor",
			wantResolve: 1,
			wantRedeem:  1,
			wantGet:     1,
		},
		{
			name:        "confirmation read retried then given up",
			redeemErrs:  []error{transport},
			getErrs:     []error{transport, transport, transport},
			wantOut:     "Erro ao comunicar com o servidor",
			wantResolve: 1,
			wantRedeem:  1,
			wantGet:     3,
		},
		{
			name:        "retries are bounded",
			resolveErrs: []error{transport, transport, transport, transport},
			wantOut:     "Erro ao comunicar com o servidor",
			wantResolve: 3,
		},
		{
			name:        "already redeemed is not retried",
			redeemErrs:  []error{entity.NewTransitionError(1, domainwf.StateRedeemed, domainwf.TriggerRedeem)},
			wantOut:     "já foi utilizada",
			wantResolve: 1,
			wantRedeem:  1,
		},
		{
			name:        "ownership mismatch",
			resolveErrs: []error{&entity.OwnershipError{VoucherCarrier: "Dona Maria", ActiveVessel: "B/M Tio Gracy"}},
			wantOut:     "emitida para Dona Maria",
			wantResolve: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resolveCalls, redeemCalls, getCalls int
			svc := &mockVoucherService{
				resolveFunc: func(ctx context.Context, raw string, actor entity.Actor) (*entity.Voucher, error) {
					resolveCalls++
					assert.Equal(t, "k3v9x2ab", raw)
					if len(tt.resolveErrs) >= resolveCalls {
						return nil, tt.resolveErrs[resolveCalls-1]
					}
					return approved(1), nil
				},
				redeemFunc: func(ctx context.Context, id int64, actor entity.Actor, scanSourceCode, location string) (*entity.Voucher, error) {
					redeemCalls++
					assert.Equal(t, "k3v9x2ab", scanSourceCode)
					assert.Equal(t, "B/M Tio Gracy", location)
					if len(tt.redeemErrs) >= redeemCalls {
						return nil, tt.redeemErrs[redeemCalls-1]
					}
					return redeemedBy(id, actor.ID), nil
				},
				getFunc: func(ctx context.Context, id int64, actor entity.Actor) (*entity.Voucher, error) {
					getCalls++
					if len(tt.getErrs) >= getCalls {
						return nil, tt.getErrs[getCalls-1]
					}
					return tt.afterFail, nil
				},
			}

			var out bytes.Buffer
			st := newTestStation(svc, "k3v9x2ab\n", &out)
			require.NoError(t, st.Run(context.Background()))

			assert.Contains(t, out.String(), tt.wantOut)
			assert.Equal(t, tt.wantResolve, resolveCalls)
			assert.Equal(t, tt.wantRedeem, redeemCalls)
			assert.Equal(t, tt.wantGet, getCalls)
			if tt.wantGet > 0 {
				assert.NotContains(t, out.String(), "outra viagem")
			}
		})
	}
}

func TestStation_RequiresActiveVessel(t *testing.T) {
	var out bytes.Buffer
	st := NewStation(&mockVoucherService{}, NewSession(NewLineCamera(strings.NewReader("")), zap.NewNop()),
		entity.Actor{Role: entity.RoleCarrier}, &out, StationConfig{}, zap.NewNop())

	assert.ErrorIs(t, st.Run(context.Background()), entity.ErrNoActiveVessel)
}

func TestStation_DropsStaleResult(t *testing.T) {
	var (
		out     bytes.Buffer
		redeems int
	)
	var st *Station
	svc := &mockVoucherService{
		resolveFunc: func(ctx context.Context, raw string, actor entity.Actor) (*entity.Voucher, error) {
			require.NoError(t, st.session.Close())
			return approved(1), nil
		},
		redeemFunc: func(ctx context.Context, id int64, actor entity.Actor, scanSourceCode, location string) (*entity.Voucher, error) {
			redeems++
			return approved(1), nil
		},
	}
	st = newTestStation(svc, "k3v9x2ab\n", &out)

	require.NoError(t, st.Run(context.Background()))
	assert.Zero(t, redeems)
	assert.NotContains(t, out.String(), "OK")
}

func TestStation_StartStop(t *testing.T) {
	svc := &mockVoucherService{}
	cam := &fakeCamera{}
	st := NewStation(svc, NewSession(cam, zap.NewNop()), carrier, &bytes.Buffer{}, StationConfig{}, zap.NewNop())

	require.NoError(t, st.Start(context.Background()))
	assert.Error(t, st.Start(context.Background()))
	require.Eventually(t, func() bool {
		starts, _, _ := cam.counts()
		return starts == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, st.Stop())
	_, _, releases := cam.counts()
	assert.Equal(t, 1, releases)
	assert.Equal(t, "boarding-station", st.Name())
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// lossyGateway commits every redemption but loses the response
type lossyGateway struct {
	mu      sync.Mutex
	voucher entity.Voucher
	redeems int
}

func (g *lossyGateway) Create(ctx context.Context, actor entity.Actor, input entity.CreateVoucherInput) (*entity.Voucher, error) {
	return nil, fmt.Errorf("unexpected call")
}

func (g *lossyGateway) GetByID(ctx context.Context, actor entity.Actor, id int64) (*entity.Voucher, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id != g.voucher.ID {
		return nil, entity.ErrNotFound
	}
	copied := g.voucher
	return &copied, nil
}

func (g *lossyGateway) GetByPublicCode(ctx context.Context, actor entity.Actor, code string) (*entity.Voucher, error) {
	return g.GetByID(ctx, actor, g.voucher.ID)
}

func (g *lossyGateway) Authorize(ctx context.Context, actor entity.Actor, id int64, req entity.AuthorizationRequest) error {
	return fmt.Errorf("unexpected call")
}

func (g *lossyGateway) Redeem(ctx context.Context, actor entity.Actor, id int64, req entity.RedemptionRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.redeems++
	if g.voucher.Status == domainwf.StateApproved {
		now := time.Now()
		g.voucher.Status = domainwf.StateRedeemed
		g.voucher.RedeemedBy = req.ActorID
		g.voucher.RedeemedAt = &now
	}
	return &entity.TransportError{Op: "redeem", Err: fmt.Errorf("connection reset after commit")}
}

func (g *lossyGateway) List(ctx context.Context, actor entity.Actor, filter entity.ListFilter) ([]*entity.Voucher, error) {
	return nil, fmt.Errorf("unexpected call")
}

func TestStation_LostRedeemResponseIsConfirmed(t *testing.T) {
	gw := &lossyGateway{voucher: *approved(1)}
	svc := service.NewVoucherService(gw, workflow.NewEngine(), nopLogger{})

	var out bytes.Buffer
	session := NewSession(NewLineCamera(strings.NewReader("k3v9x2ab\n")), zap.NewNop())
	st := NewStation(svc, session, carrier, &out, StationConfig{MaxAttempts: 3, Backoff: time.Millisecond}, zap.NewNop())
	require.NoError(t, st.Run(context.Background()))

	assert.Equal(t, 1, gw.redeems)
	assert.Equal(t, domainwf.StateRedeemed, gw.voucher.Status)
	assert.Equal(t, "7", gw.voucher.RedeemedBy)
	assert.Contains(t, out.String(), "OK 1/2026 Maria Souza -> Manaus (k3v9x2ab)")
	assert.NotContains(t, out.String(), "ERRO")
}
