package entity

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/river-voucher/internal/domain/workflow"
)

func TestAlreadyRedeemedIsInvalidTransition(t *testing.T) {
	assert.True(t, errors.Is(ErrAlreadyRedeemed, ErrInvalidTransition))
	assert.False(t, errors.Is(ErrInvalidTransition, ErrAlreadyRedeemed))
}

func TestNewTransitionError(t *testing.T) {
	tests := []struct {
		name        string
		from        workflow.State
		trigger     workflow.Trigger
		wantRedeem  bool
		wantMessage string
	}{
		{"redeem redeemed", workflow.StateRedeemed, workflow.TriggerRedeem, true, "Esta requisição já foi utilizada em outra viagem."},
		{"redeem pending", workflow.StatePending, workflow.TriggerRedeem, false, "Ainda está aguardando autorização da Prefeitura."},
		{"redeem rejected", workflow.StateRejected, workflow.TriggerRedeem, false, "Só é possível confirmar viagens APROVADAS."},
		{"approve approved", workflow.StateApproved, workflow.TriggerApprove, false, "A requisição está aprovada e não pode ser aprovada."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTransitionError(7, tt.from, tt.trigger)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.wantRedeem, errors.Is(err, ErrAlreadyRedeemed))
			assert.Equal(t, tt.wantMessage, UserMessage(err))
			assert.False(t, IsRetryable(err))
		})
	}
}

func TestUserMessageAndKind(t *testing.T) {
	transport := &TransportError{Op: "redeem", StatusCode: 502, Err: errors.New("bad gateway")}

	tests := []struct {
		name      string
		err       error
		kind      string
		message   string
		retryable bool
	}{
		{"nil", nil, "", "", false},
		{"not found", fmt.Errorf("lookup: %w", ErrNotFound), "not_found", "Requisição não encontrada.", false},
		{"ownership", &OwnershipError{VoucherCarrier: "B/M Tio Gracy", ActiveVessel: "Comandante Sales"}, "ownership_mismatch",
			"Esta requisição não pertence ao seu barco (emitida para B/M Tio Gracy).", false},
		{"ownership without carrier", &OwnershipError{ActiveVessel: "Comandante Sales"}, "ownership_mismatch",
			"Esta requisição não pertence ao seu barco (nenhum barco informado na requisição).", false},
		{"no vessel", ErrNoActiveVessel, "no_active_vessel", "Selecione o barco antes de validar requisições.", false},
		{"forbidden", ErrForbidden, "forbidden", "Seu perfil não tem permissão para esta ação.", false},
		{"transport", fmt.Errorf("redeem 5: %w", transport), "transport", "Erro ao comunicar com o servidor. Tente novamente.", true},
		{"canceled", context.Canceled, "canceled", "Erro ao processar a requisição. Tente novamente.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Kind(tt.err))
			assert.Equal(t, tt.message, UserMessage(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestTransportErrorFormatting(t *testing.T) {
	err := &TransportError{Op: "get requisition", Err: errors.New("connection refused")}
	assert.Equal(t, "get requisition: connection refused", err.Error())

	err = &TransportError{Op: "redeem", StatusCode: 503, Err: errors.New("unavailable")}
	assert.Equal(t, "redeem: backend returned 503: unavailable", err.Error())
}

func TestParseRoleAndDecision(t *testing.T) {
	role, err := ParseRole(" Transportador ")
	assert.NoError(t, err)
	assert.Equal(t, RoleCarrier, role)

	_, err = ParseRole("pilot")
	assert.ErrorIs(t, err, ErrInvalidInput)

	d, err := ParseDecision("reprovar")
	assert.NoError(t, err)
	assert.Equal(t, workflow.TriggerReject, d.Trigger())

	_, err = ParseDecision("maybe")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDisplayNumber(t *testing.T) {
	assert.Equal(t, "12/2026", (&Voucher{ID: 3, PublicCode: "ab12cd34", Number: "12/2026"}).DisplayNumber())
	assert.Equal(t, "ab12cd34", (&Voucher{ID: 3, PublicCode: "ab12cd34"}).DisplayNumber())
	assert.Equal(t, "3", (&Voucher{ID: 3}).DisplayNumber())
}
