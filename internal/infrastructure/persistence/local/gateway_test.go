package local

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/domain/entity"
	domainwf "github.com/garyjia/river-voucher/internal/domain/workflow"
	"github.com/garyjia/river-voucher/internal/infrastructure/persistence/repository"
	"github.com/garyjia/river-voucher/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/river-voucher/pkg/database"
)

var (
	issuer         = entity.Actor{ID: "1", Role: entity.RoleIssuer}
	representative = entity.Actor{ID: "2", Role: entity.RoleRepresentative, Name: "João da Silva"}
	tioGracy       = entity.Actor{ID: "3", Role: entity.RoleCarrier, ActiveVessel: "Tio Gracy"}
	donaMaria      = entity.Actor{ID: "4", Role: entity.RoleCarrier, ActiveVessel: "Dona Maria"}
)

type fixture struct {
	gw    *Gateway
	repos Repositories
	codes []string
}

func newFixture(t *testing.T, codes ...string) *fixture {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "vouchers.db"), MaxOpenConns: 1}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.NewMigrator(db, logger).Run(context.Background(), sqlite.Migrations())
	require.NoError(t, err)

	repos := Repositories{
		Vouchers:    repository.NewVoucherRepository(db.DB, logger),
		History:     repository.NewHistoryRepository(db.DB, logger),
		Redemptions: repository.NewRedemptionRepository(db.DB, logger),
		Users:       repository.NewUserRepository(db.DB, logger),
	}

	f := &fixture{repos: repos, codes: codes}
	opts := []Option{WithClock(func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) })}
	if len(codes) > 0 {
		var mu sync.Mutex
		opts = append(opts, WithCodeGenerator(func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(f.codes) == 0 {
				return "", fmt.Errorf("no more codes")
			}
			code := f.codes[0]
			f.codes = f.codes[1:]
			return code, nil
		}))
	}
	f.gw = NewGateway(repos, sqlite.NewDB(db.DB, logger), logger, opts...)
	return f
}

func input() entity.CreateVoucherInput {
	return entity.CreateVoucherInput{
		PassengerName: "Maria Souza",
		PassengerCPF:  "52998224725",
		Origin:        "Borba",
		Destination:   "Manaus",
		DepartureDate: "2026-03-10",
		CarrierName:   "B/M Tio Gracy",
	}
}

func TestRandomPublicCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := RandomPublicCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[a-z0-9]{8}$`, code)
	}
}

func TestGateway_CreateNumbersAndCodes(t *testing.T) {
	f := newFixture(t, "aaaa1111", "aaaa1111", "bbbb2222")
	ctx := context.Background()

	first, err := f.gw.Create(ctx, issuer, input())
	require.NoError(t, err)
	assert.Equal(t, "1/2026", first.Number)
	assert.Equal(t, "aaaa1111", first.PublicCode)
	assert.Equal(t, domainwf.StatePending, first.Status)

	second, err := f.gw.Create(ctx, issuer, input())
	require.NoError(t, err)
	assert.Equal(t, "2/2026", second.Number)
	assert.Equal(t, "bbbb2222", second.PublicCode, "colliding code is retried")

	_, err = f.gw.Create(ctx, tioGracy, input())
	assert.ErrorIs(t, err, entity.ErrForbidden)

	history, err := f.repos.History.GetByVoucherID(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "CREATE", history[0].ActionType)
}

func TestGateway_CodeSpaceExhausted(t *testing.T) {
	codes := make([]string, maxCodeAttempts+1)
	for i := range codes {
		codes[i] = "samecode"
	}
	f := newFixture(t, codes...)

	_, err := f.gw.Create(context.Background(), issuer, input())
	require.NoError(t, err)
	_, err = f.gw.Create(context.Background(), issuer, input())
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
}

func TestGateway_CreateSkipsAllDigitCodes(t *testing.T) {
	f := newFixture(t, "12345678", "00000001", "k3v9x2ab")

	v, err := f.gw.Create(context.Background(), issuer, input())
	require.NoError(t, err)
	assert.Equal(t, "k3v9x2ab", v.PublicCode)
}

func TestGateway_CreateGivesUpOnDigitOnlyGenerator(t *testing.T) {
	codes := make([]string, maxCodeAttempts)
	for i := range codes {
		codes[i] = "20262026"
	}
	f := newFixture(t, codes...)

	_, err := f.gw.Create(context.Background(), issuer, input())
	assert.ErrorIs(t, err, ErrCodeSpaceExhausted)
}

func TestGateway_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.gw.Create(ctx, issuer, input())
	require.NoError(t, err)

	err = f.gw.Redeem(ctx, tioGracy, v.ID, entity.RedemptionRequest{ActorID: "3"})
	assert.ErrorIs(t, err, entity.ErrInvalidTransition, "pending cannot be redeemed")

	err = f.gw.Authorize(ctx, tioGracy, v.ID, entity.AuthorizationRequest{Decision: entity.DecisionApprove})
	assert.ErrorIs(t, err, entity.ErrForbidden)

	require.NoError(t, f.gw.Authorize(ctx, representative, v.ID, entity.AuthorizationRequest{
		Decision: entity.DecisionApprove, ActorID: "2", RepresentativeName: "João da Silva",
	}))
	got, err := f.gw.GetByID(ctx, representative, v.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateApproved, got.Status)
	assert.Equal(t, "João da Silva", got.RepresentativeName)
	require.NotNil(t, got.DecidedAt)

	err = f.gw.Authorize(ctx, representative, v.ID, entity.AuthorizationRequest{Decision: entity.DecisionReject, ActorID: "2"})
	assert.ErrorIs(t, err, entity.ErrInvalidTransition, "decision is made once")

	err = f.gw.Redeem(ctx, donaMaria, v.ID, entity.RedemptionRequest{ActorID: "4"})
	assert.ErrorIs(t, err, entity.ErrOwnershipMismatch)

	require.NoError(t, f.gw.Redeem(ctx, tioGracy, v.ID, entity.RedemptionRequest{
		ActorID: "3", ScanSourceCode: v.PublicCode, Location: "B/M Tio Gracy",
	}))
	got, err = f.gw.GetByPublicCode(ctx, tioGracy, v.PublicCode)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateRedeemed, got.Status)
	assert.Equal(t, "3", got.RedeemedBy)
	assert.Equal(t, "B/M Tio Gracy", got.RedemptionLocation)

	red, err := f.repos.Redemptions.GetByVoucherID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RedemptionKindBoarding, red.Kind)
	assert.Equal(t, v.PublicCode, red.ScanSourceCode)

	err = f.gw.Redeem(ctx, tioGracy, v.ID, entity.RedemptionRequest{ActorID: "3"})
	assert.ErrorIs(t, err, entity.ErrAlreadyRedeemed)

	history, err := f.repos.History.GetByVoucherID(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "APPROVE", history[1].ActionType)
	assert.Equal(t, "PENDING", history[1].PreviousStatus)
	assert.Equal(t, "REDEEM", history[2].ActionType)
	assert.Equal(t, "REDEEMED", history[2].NewStatus)
}

func TestGateway_RejectKeepsReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.gw.Create(ctx, issuer, input())
	require.NoError(t, err)
	require.NoError(t, f.gw.Authorize(ctx, representative, v.ID, entity.AuthorizationRequest{
		Decision: entity.DecisionReject, ActorID: "2", Reason: "documentação incompleta",
	}))

	got, err := f.gw.GetByID(ctx, issuer, v.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateRejected, got.Status)
	assert.Equal(t, "documentação incompleta", got.RejectionReason)

	err = f.gw.Redeem(ctx, tioGracy, v.ID, entity.RedemptionRequest{ActorID: "3"})
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)
	assert.NotErrorIs(t, err, entity.ErrAlreadyRedeemed)
}

func TestGateway_ConcurrentRedeemSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.gw.Create(ctx, issuer, input())
	require.NoError(t, err)
	require.NoError(t, f.gw.Authorize(ctx, representative, v.ID, entity.AuthorizationRequest{Decision: entity.DecisionApprove, ActorID: "2"}))

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		redeemed  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.gw.Redeem(ctx, tioGracy, v.ID, entity.RedemptionRequest{ActorID: "3"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, entity.ErrAlreadyRedeemed):
				redeemed++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, redeemed)
}

func TestGateway_ListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.gw.Create(ctx, issuer, input())
	require.NoError(t, err)
	other := input()
	other.CarrierName = "Dona Maria"
	other.PassengerName = "José Araújo"
	_, err = f.gw.Create(ctx, issuer, other)
	require.NoError(t, err)
	require.NoError(t, f.gw.Authorize(ctx, representative, a.ID, entity.AuthorizationRequest{Decision: entity.DecisionApprove, ActorID: "2"}))

	all, err := f.gw.List(ctx, issuer, entity.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	approved, err := f.gw.List(ctx, issuer, entity.ListFilter{Status: domainwf.StateApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, a.ID, approved[0].ID)

	byCarrier, err := f.gw.List(ctx, issuer, entity.ListFilter{CarrierName: "barco tio gracy"})
	require.NoError(t, err)
	require.Len(t, byCarrier, 1)

	byText, err := f.gw.List(ctx, issuer, entity.ListFilter{Query: "jose araujo"})
	require.NoError(t, err)
	require.Len(t, byText, 1)
	assert.Equal(t, "José Araújo", byText[0].PassengerName)

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)
	sameDay, err := f.gw.List(ctx, issuer, entity.ListFilter{CreatedFrom: &day, CreatedTo: &day})
	require.NoError(t, err)
	assert.Len(t, sameDay, 2)
	later, err := f.gw.List(ctx, issuer, entity.ListFilter{CreatedFrom: &next})
	require.NoError(t, err)
	assert.Empty(t, later)
}

func TestGateway_SeedAndAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.gw.SeedUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultUsers), n)

	n, err = f.gw.SeedUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	u, err := f.gw.Authenticate(ctx, "b/m tio gracy", DefaultPassword)
	require.NoError(t, err)
	assert.Equal(t, entity.RoleCarrier, u.Role)
	assert.Equal(t, "B/M Tio Gracy", u.Vessel)

	_, err = f.gw.Authenticate(ctx, "Administrador", "wrong")
	assert.ErrorIs(t, err, entity.ErrUnauthenticated)
	_, err = f.gw.Authenticate(ctx, "ninguém", DefaultPassword)
	assert.ErrorIs(t, err, entity.ErrUnauthenticated)
}
