package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/river-voucher/internal/domain/workflow"
)

var (
	// ErrNotFound is returned when no requisition matches an id or public code
	ErrNotFound = errors.New("requisition not found")

	// ErrInvalidTransition is returned when a requisition is not in a state that accepts the action
	ErrInvalidTransition = workflow.ErrInvalidTransition

	// ErrAlreadyRedeemed is the InvalidTransition raised when redeeming an already used voucher
	ErrAlreadyRedeemed = fmt.Errorf("requisition already redeemed: %w", workflow.ErrInvalidTransition)

	// ErrOwnershipMismatch is returned when a carrier acts on a voucher issued for another vessel
	ErrOwnershipMismatch = errors.New("requisition belongs to another vessel")

	// ErrForbidden is returned when the actor's role may not perform the action
	ErrForbidden = errors.New("forbidden for this role")

	// ErrNoActiveVessel is returned when a carrier has not selected a vessel to act for
	ErrNoActiveVessel = errors.New("no active vessel selected")

	// ErrInvalidInput is returned for malformed operation input
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthenticated is returned for missing or bad credentials
	ErrUnauthenticated = errors.New("unauthenticated")
)

// TransitionError describes a refused lifecycle action on a specific requisition
type TransitionError struct {
	VoucherID int64
	From      workflow.State
	Trigger   workflow.Trigger
	Err       error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("requisition %d: cannot %s from %s: %v", e.VoucherID, e.Trigger, e.From, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// NewTransitionError classifies a refused trigger. Redeeming a redeemed voucher is ErrAlreadyRedeemed.
func NewTransitionError(id int64, from workflow.State, trigger workflow.Trigger) *TransitionError {
	err := ErrInvalidTransition
	if trigger == workflow.TriggerRedeem && from == workflow.StateRedeemed {
		err = ErrAlreadyRedeemed
	}
	return &TransitionError{VoucherID: id, From: from, Trigger: trigger, Err: err}
}

// OwnershipError names the vessel the voucher was issued for and the vessel acting on it
type OwnershipError struct {
	VoucherCarrier string
	ActiveVessel   string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("%v: issued for %q, acting as %q", ErrOwnershipMismatch, e.VoucherCarrier, e.ActiveVessel)
}

func (e *OwnershipError) Unwrap() error {
	return ErrOwnershipMismatch
}

// TransportError wraps network failures and 5xx responses from the backend.
// It is the only retryable category; the caller must not assume any state change.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: backend returned %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the failure may succeed on retry
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Kind returns a stable machine-readable name for the error category
func Kind(err error) string {
	var te *TransportError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &te):
		return "transport"
	case errors.Is(err, ErrAlreadyRedeemed):
		return "already_redeemed"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrOwnershipMismatch):
		return "ownership_mismatch"
	case errors.Is(err, ErrNoActiveVessel):
		return "no_active_vessel"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

// UserMessage renders an operation error as the Portuguese message shown to operators
func UserMessage(err error) string {
	var (
		te *TransitionError
		oe *OwnershipError
	)
	switch {
	case err == nil:
		return ""
	case IsRetryable(err):
		return "Erro ao comunicar com o servidor. Tente novamente."
	case errors.Is(err, ErrAlreadyRedeemed):
		return "Esta requisição já foi utilizada em outra viagem."
	case errors.As(err, &te):
		return transitionMessage(te)
	case errors.Is(err, ErrInvalidTransition):
		return "A requisição não está em um status que permita esta ação."
	case errors.Is(err, ErrNotFound):
		return "Requisição não encontrada."
	case errors.As(err, &oe):
		if oe.VoucherCarrier == "" {
			return "Esta requisição não pertence ao seu barco (nenhum barco informado na requisição)."
		}
		return fmt.Sprintf("Esta requisição não pertence ao seu barco (emitida para %s).", oe.VoucherCarrier)
	case errors.Is(err, ErrOwnershipMismatch):
		return "Esta requisição não pertence ao seu barco."
	case errors.Is(err, ErrNoActiveVessel):
		return "Selecione o barco antes de validar requisições."
	case errors.Is(err, ErrForbidden):
		return "Seu perfil não tem permissão para esta ação."
	case errors.Is(err, ErrUnauthenticated):
		return "Usuário ou senha inválidos."
	case errors.Is(err, ErrInvalidInput):
		return "Dados inválidos: " + err.Error()
	default:
		return "Erro ao processar a requisição. Tente novamente."
	}
}

func transitionMessage(te *TransitionError) string {
	if te.Trigger == workflow.TriggerRedeem {
		switch te.From {
		case workflow.StatePending:
			return "Ainda está aguardando autorização da Prefeitura."
		case workflow.StateRejected:
			return "Só é possível confirmar viagens APROVADAS."
		}
	}
	return fmt.Sprintf("A requisição está %s e não pode ser %s.", statusLabel(te.From), actionLabel(te.Trigger))
}

func statusLabel(s workflow.State) string {
	switch s {
	case workflow.StatePending:
		return "pendente"
	case workflow.StateApproved:
		return "aprovada"
	case workflow.StateRejected:
		return "reprovada"
	case workflow.StateRedeemed:
		return "utilizada"
	}
	return string(s)
}

func actionLabel(t workflow.Trigger) string {
	switch t {
	case workflow.TriggerApprove:
		return "aprovada"
	case workflow.TriggerReject:
		return "reprovada"
	case workflow.TriggerRedeem:
		return "utilizada"
	}
	return string(t)
}
