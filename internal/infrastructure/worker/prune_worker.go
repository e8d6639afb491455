package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pruner drops expired cached state and reports how many entries went away
type Pruner interface {
	Prune() int
}

// PruneWorker periodically evicts lifecycle snapshots the engine no longer needs
type PruneWorker struct {
	pruner   Pruner
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	removed int
}

// NewPruneWorker creates a prune worker; interval defaults to one minute
func NewPruneWorker(pruner Pruner, interval time.Duration, logger *zap.Logger) *PruneWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PruneWorker{pruner: pruner, interval: interval, logger: logger}
}

// Name implements Worker
func (w *PruneWorker) Name() string {
	return "snapshot-prune"
}

// Start begins the ticker loop
func (w *PruneWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != nil {
		return fmt.Errorf("prune worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx, w.done)
	return nil
}

func (w *PruneWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := w.pruner.Prune(); n > 0 {
				w.mu.Lock()
				w.removed += n
				w.mu.Unlock()
				w.logger.Debug("Pruned lifecycle snapshots", zap.Int("removed", n))
			}
		}
	}
}

// Stop ends the loop and waits for it to exit
func (w *PruneWorker) Stop() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	<-done
	return nil
}

// Removed returns the total number of pruned snapshots
func (w *PruneWorker) Removed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removed
}
