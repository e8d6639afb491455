package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/garyjia/river-voucher/internal/application/dispatcher"
	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/domain/event"
)

// ActionEventPrefix marks history rows recorded from published events
const ActionEventPrefix = "EVENT:"

// AuditService keeps the local audit trail of lifecycle events
type AuditService interface {
	// Handler records every lifecycle event into the history store
	Handler() dispatcher.Handler
	Trail(ctx context.Context, voucherID int64, actor entity.Actor) ([]*entity.VoucherHistory, error)
}

type auditServiceImpl struct {
	historyRepo port.HistoryRepository
	logger      Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(historyRepo port.HistoryRepository, logger Logger) AuditService {
	return &auditServiceImpl{
		historyRepo: historyRepo,
		logger:      logger,
	}
}

func (s *auditServiceImpl) Handler() dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		data, err := json.Marshal(map[string]interface{}{
			"event_id":       evt.ID,
			"public_code":    evt.PublicCode,
			"correlation_id": evt.CorrelationID,
			"payload":        evt.Payload,
		})
		if err != nil {
			return fmt.Errorf("marshal audit data: %w", err)
		}

		history := &entity.VoucherHistory{
			VoucherID:      evt.VoucherID,
			ActorID:        evt.ActorID,
			PreviousStatus: evt.GetPayloadString("previous_status"),
			NewStatus:      evt.GetPayloadString("new_status"),
			ActionType:     ActionEventPrefix + evt.Type.String(),
			ActionData:     string(data),
			Timestamp:      evt.Timestamp,
		}
		if err := s.historyRepo.Create(ctx, history); err != nil {
			s.logger.Error("Failed to record audit trail", "error", err, "voucher_id", evt.VoucherID, "type", evt.Type)
			return fmt.Errorf("record audit trail: %w", err)
		}
		return nil
	}
}

// Trail lists the recorded history of a voucher, oldest first
func (s *auditServiceImpl) Trail(ctx context.Context, voucherID int64, actor entity.Actor) ([]*entity.VoucherHistory, error) {
	if !actor.Is(entity.RoleIssuer, entity.RoleRepresentative, entity.RoleAdmin) {
		return nil, fmt.Errorf("voucher %d history: %w", voucherID, entity.ErrForbidden)
	}
	rows, err := s.historyRepo.GetByVoucherID(ctx, voucherID)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return rows, nil
}
