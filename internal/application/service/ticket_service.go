package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/garyjia/river-voucher/internal/application/dispatcher"
	"github.com/garyjia/river-voucher/internal/application/port"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/domain/event"
)

// TicketService renders the printable stub handed to the passenger
type TicketService interface {
	PDF(ctx context.Context, id int64, actor entity.Actor) ([]byte, *entity.Voucher, error)
	PNG(ctx context.Context, id int64, actor entity.Actor) ([]byte, *entity.Voucher, error)
	// ArchiveHandler stores the stub of newly approved vouchers
	ArchiveHandler() dispatcher.Handler
}

// SystemActor is the identity background jobs read the backend with
var SystemActor = entity.Actor{ID: "system", Name: "system", Role: entity.RoleAdmin}

// ServiceActor is SystemActor authenticated with the backend service token
func ServiceActor(token string) entity.Actor {
	actor := SystemActor
	actor.Token = token
	return actor
}

type ticketServiceImpl struct {
	vouchers   VoucherService
	renderer   port.TicketRenderer
	storage    port.FileStorage
	background entity.Actor
	logger     Logger
}

// TicketOption configures the ticket service
type TicketOption func(*ticketServiceImpl)

// WithBackgroundActor sets the identity used by the archive subscriber,
// which runs outside any operator request
func WithBackgroundActor(actor entity.Actor) TicketOption {
	return func(s *ticketServiceImpl) {
		s.background = actor
	}
}

// NewTicketService creates a new TicketService. storage may be nil when archiving is disabled.
func NewTicketService(vouchers VoucherService, renderer port.TicketRenderer, storage port.FileStorage, logger Logger, opts ...TicketOption) TicketService {
	s := &ticketServiceImpl{
		vouchers:   vouchers,
		renderer:   renderer,
		storage:    storage,
		background: SystemActor,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ticketServiceImpl) PDF(ctx context.Context, id int64, actor entity.Actor) ([]byte, *entity.Voucher, error) {
	v, err := s.vouchers.Get(ctx, id, actor)
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if err := s.renderer.RenderPDF(ctx, v, &buf); err != nil {
		return nil, nil, fmt.Errorf("render voucher %d: %w", id, err)
	}
	return buf.Bytes(), v, nil
}

func (s *ticketServiceImpl) PNG(ctx context.Context, id int64, actor entity.Actor) ([]byte, *entity.Voucher, error) {
	pdf, v, err := s.PDF(ctx, id, actor)
	if err != nil {
		return nil, nil, err
	}
	img, err := s.renderer.RenderPNG(ctx, pdf)
	if err != nil {
		return nil, nil, fmt.Errorf("rasterize voucher %d: %w", id, err)
	}
	return img, v, nil
}

func (s *ticketServiceImpl) ArchiveHandler() dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if s.storage == nil || evt.Type != event.TypeVoucherApproved {
			return nil
		}

		pdf, v, err := s.PDF(ctx, evt.VoucherID, s.background)
		if err != nil {
			return err
		}

		target := ArchivePath(v, evt.Timestamp)
		if err := s.storage.Save(ctx, target, pdf); err != nil {
			return fmt.Errorf("archive voucher %d: %w", v.ID, err)
		}
		s.logger.Info("Voucher archived", "id", v.ID, "path", target)
		return nil
	}
}

// ArchivePath groups archived stubs by approval month
func ArchivePath(v *entity.Voucher, at time.Time) string {
	if at.IsZero() {
		at = time.Now()
	}
	name := v.PublicCode
	if name == "" {
		name = fmt.Sprintf("%d", v.ID)
	}
	return path.Join("vouchers", at.Format("2006-01"), fmt.Sprintf("canhoto_%d_%s.pdf", v.ID, name))
}
