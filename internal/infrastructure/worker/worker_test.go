package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWorker struct {
	name     string
	startErr error
	log      *[]string
	mu       *sync.Mutex
}

func (w *recordingWorker) Name() string { return w.name }

func (w *recordingWorker) Start(ctx context.Context) error {
	if w.startErr != nil {
		return w.startErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	*w.log = append(*w.log, "start "+w.name)
	return nil
}

func (w *recordingWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	*w.log = append(*w.log, "stop "+w.name)
	return nil
}

func TestManager_OrderedStartAndReverseStop(t *testing.T) {
	var (
		log []string
		mu  sync.Mutex
	)
	m := NewManager(zap.NewNop())
	m.Register(&recordingWorker{name: "a", log: &log, mu: &mu})
	m.Register(&recordingWorker{name: "broken", startErr: errors.New("no camera"), log: &log, mu: &mu})
	m.Register(&recordingWorker{name: "b", log: &log, mu: &mu})

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.Equal(t, 3, m.Count())
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}

type countingPruner struct {
	calls atomic.Int32
}

func (p *countingPruner) Prune() int {
	p.calls.Add(1)
	return 2
}

func TestPruneWorker(t *testing.T) {
	p := &countingPruner{}
	w := NewPruneWorker(p, 5*time.Millisecond, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	calls := p.calls.Load()
	assert.GreaterOrEqual(t, w.Removed(), 4)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, p.calls.Load(), "no prune after stop")
}
