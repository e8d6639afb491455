package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/river-voucher/internal/application/service"
	"github.com/garyjia/river-voucher/internal/domain/entity"
	domainwf "github.com/garyjia/river-voucher/internal/domain/workflow"
)

// StationConfig tunes how a Station retries reads after transport failures
type StationConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Station redeems every code read by its session for one carrier.
// Reads are retried after transport failures. The redemption itself is sent
// once; every other error is reported and the station waits for the next code.
type Station struct {
	vouchers service.VoucherService
	session  *Session
	actor    entity.Actor
	out      io.Writer
	cfg      StationConfig
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStation creates a station acting as actor
func NewStation(vouchers service.VoucherService, session *Session, actor entity.Actor, out io.Writer, cfg StationConfig, logger *zap.Logger) *Station {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	return &Station{
		vouchers: vouchers,
		session:  session,
		actor:    actor,
		out:      out,
		cfg:      cfg,
		logger:   logger,
	}
}

// Name implements worker.Worker
func (st *Station) Name() string {
	return "boarding-station"
}

// Start runs the station in the background until ctx ends or Stop is called
func (st *Station) Start(ctx context.Context) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.done != nil {
		return errors.New("station already running")
	}

	ctx, st.cancel = context.WithCancel(ctx)
	st.done = make(chan struct{})
	go func() {
		defer close(st.done)
		if err := st.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			st.logger.Error("Boarding station stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop closes the session and waits for the station to finish
func (st *Station) Stop() error {
	st.mu.Lock()
	cancel, done := st.cancel, st.done
	st.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	err := st.session.Close()
	<-done
	return err
}

// Run scans and redeems until the reader is exhausted or ctx ends
func (st *Station) Run(ctx context.Context) error {
	if st.actor.ActiveVessel == "" {
		return entity.ErrNoActiveVessel
	}
	fmt.Fprintf(st.out, "Validando embarques para %s\n", st.actor.ActiveVessel)

	for {
		res, err := st.session.Scan(ctx)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, ErrSessionClosed):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.Canceled):
			continue
		case err != nil:
			st.logger.Error("Scan failed", zap.Error(err))
			fmt.Fprintf(st.out, "Erro na leitura: %v\n", err)
			continue
		}
		st.Handle(ctx, res)
	}
}

// Handle resolves and redeems one scanned code and prints the outcome
func (st *Station) Handle(ctx context.Context, res Result) {
	var v *entity.Voucher
	err := st.retry(ctx, "resolve", func() error {
		var err error
		v, err = st.vouchers.Resolve(ctx, res.Text, st.actor)
		return err
	})
	if !st.session.Current(res.Generation) {
		st.logger.Info("Dropped stale scan result", zap.String("code", res.Text), zap.Uint64("generation", res.Generation))
		return
	}
	if err != nil {
		st.report(res.Text, err)
		return
	}

	// Redeem is not idempotent, so it is sent once. A transport failure leaves
	// the outcome unknown until the voucher is read back.
	redeemed, err := st.vouchers.Redeem(ctx, v.ID, st.actor, res.Text, st.actor.ActiveVessel)
	if entity.IsRetryable(err) {
		redeemed, err = st.confirm(ctx, v.ID, err)
	}
	if err != nil {
		st.report(res.Text, err)
		return
	}

	st.logger.Info("Boarding validated",
		zap.Int64("id", redeemed.ID),
		zap.String("public_code", redeemed.PublicCode),
		zap.String("vessel", st.actor.ActiveVessel))
	fmt.Fprintf(st.out, "OK %s %s -> %s (%s)\n", redeemed.Number, redeemed.PassengerName, redeemed.Destination, redeemed.PublicCode)
}

// confirm reads the voucher after a redemption whose response was lost.
// It succeeds only when the backend shows this carrier's boarding; otherwise
// the original transport error is returned so the operator scans again.
func (st *Station) confirm(ctx context.Context, id int64, cause error) (*entity.Voucher, error) {
	var current *entity.Voucher
	err := st.retry(ctx, "confirm", func() error {
		var err error
		current, err = st.vouchers.Get(ctx, id, st.actor)
		return err
	})
	if err != nil {
		st.logger.Warn("Could not confirm redemption", zap.Int64("id", id), zap.Error(err))
		return nil, cause
	}
	if current.Status != domainwf.StateRedeemed || st.actor.ID == "" || current.RedeemedBy != st.actor.ID {
		return nil, cause
	}
	st.logger.Info("Redemption confirmed after transport failure", zap.Int64("id", id), zap.Error(cause))
	return current, nil
}

func (st *Station) report(code string, err error) {
	st.logger.Info("Boarding refused", zap.String("code", code), zap.String("kind", entity.Kind(err)), zap.Error(err))
	fmt.Fprintf(st.out, "ERRO %s: %s\n", code, entity.UserMessage(err))
}

func (st *Station) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= st.cfg.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !entity.IsRetryable(err) || attempt == st.cfg.MaxAttempts {
			return err
		}

		st.logger.Warn("Retrying after transport failure",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(st.cfg.Backoff * time.Duration(attempt)):
		}
	}
	return err
}
