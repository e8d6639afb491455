package workflow

import (
	"sync"
	"time"

	"github.com/garyjia/river-voucher/internal/domain/entity"
	"github.com/garyjia/river-voucher/internal/domain/vessel"
	domainwf "github.com/garyjia/river-voucher/internal/domain/workflow"
)

type engineImpl struct {
	mu          sync.RWMutex
	snapshots   map[int64]Snapshot
	cacheExpiry time.Duration
	now         func() time.Time
}

// EngineOption configures the lifecycle engine
type EngineOption func(*engineImpl)

// WithCacheExpiry sets how long an observed snapshot stays valid
func WithCacheExpiry(expiry time.Duration) EngineOption {
	return func(e *engineImpl) {
		e.cacheExpiry = expiry
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new lifecycle engine
func NewEngine(opts ...EngineOption) LifecycleEngine {
	e := &engineImpl{
		snapshots:   make(map[int64]Snapshot),
		cacheExpiry: 30 * time.Minute,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *engineImpl) Guard(v *entity.Voucher, trigger domainwf.Trigger) (domainwf.State, error) {
	if !v.Status.IsValid() {
		return "", entity.NewTransitionError(v.ID, v.Status, trigger)
	}
	to, err := BuildVoucherStateMachine(v.Status).Target(trigger)
	if err != nil {
		return "", entity.NewTransitionError(v.ID, v.Status, trigger)
	}
	return to, nil
}

func (e *engineImpl) Observe(v *entity.Voucher) {
	if v == nil || v.ID == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshots[v.ID] = Snapshot{
		VoucherID:   v.ID,
		PublicCode:  v.PublicCode,
		State:       v.Status,
		CarrierName: v.CarrierName,
		ObservedAt:  e.now(),
	}
}

func (e *engineImpl) Snapshot(voucherID int64) (Snapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.snapshots[voucherID]
	if !ok || e.now().Sub(s.ObservedAt) >= e.cacheExpiry {
		return Snapshot{}, false
	}
	return s, true
}

func (e *engineImpl) Actions(v *entity.Voucher, actor entity.Actor) []domainwf.Trigger {
	if v == nil || !v.Status.IsValid() {
		return []domainwf.Trigger{}
	}
	permitted := BuildVoucherStateMachine(e.effectiveState(v)).PermittedTriggers()
	actions := make([]domainwf.Trigger, 0, len(permitted))
	for _, trigger := range permitted {
		switch trigger {
		case domainwf.TriggerApprove, domainwf.TriggerReject:
			if actor.Role == entity.RoleRepresentative {
				actions = append(actions, trigger)
			}
		case domainwf.TriggerRedeem:
			if actor.Role == entity.RoleCarrier && vessel.Same(v.CarrierName, actor.ActiveVessel) {
				actions = append(actions, trigger)
			}
		}
	}
	return actions
}

// effectiveState is v's status, or the confirmed snapshot state when the
// backend has already moved the voucher past the copy being rendered
// (a list row fetched before a redemption, for example).
func (e *engineImpl) effectiveState(v *entity.Voucher) domainwf.State {
	s, ok := e.Snapshot(v.ID)
	if !ok || s.State == v.Status || !reachable(v.Status, s.State) {
		return v.Status
	}
	return s.State
}

// reachable reports whether to lies strictly ahead of from in the lifecycle
func reachable(from, to domainwf.State) bool {
	frontier := []domainwf.State{from}
	seen := map[domainwf.State]bool{from: true}
	for len(frontier) > 0 {
		state := frontier[0]
		frontier = frontier[1:]
		machine := BuildVoucherStateMachine(state)
		for _, trigger := range machine.PermittedTriggers() {
			next, err := machine.Target(trigger)
			if err != nil || seen[next] {
				continue
			}
			if next == to {
				return true
			}
			seen[next] = true
			frontier = append(frontier, next)
		}
	}
	return false
}

func (e *engineImpl) Prune() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for id, s := range e.snapshots {
		if e.now().Sub(s.ObservedAt) >= e.cacheExpiry {
			delete(e.snapshots, id)
			removed++
		}
	}
	return removed
}
