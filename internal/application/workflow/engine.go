package workflow

import (
	"time"

	"github.com/garyjia/river-voucher/internal/domain/entity"
	domainwf "github.com/garyjia/river-voucher/internal/domain/workflow"
)

// Snapshot is the last server-confirmed view of a voucher's lifecycle
type Snapshot struct {
	VoucherID   int64
	PublicCode  string
	State       domainwf.State
	CarrierName string
	ObservedAt  time.Time
}

// LifecycleEngine applies the voucher lifecycle locally.
// It refuses illegal actions before any request is sent and remembers
// what the backend last confirmed so screens can lock spent actions.
type LifecycleEngine interface {
	// Guard returns the target state of the trigger or a *entity.TransitionError
	Guard(v *entity.Voucher, trigger domainwf.Trigger) (domainwf.State, error)

	// Observe records an authoritative voucher returned by the backend
	Observe(v *entity.Voucher)

	// Snapshot returns the last observed state if it has not expired
	Snapshot(voucherID int64) (Snapshot, bool)

	// Actions returns the triggers the actor may fire on the voucher right now.
	// A fresher confirmed snapshot wins over an older copy of the voucher.
	Actions(v *entity.Voucher, actor entity.Actor) []domainwf.Trigger

	// Prune drops expired snapshots and returns how many were removed
	Prune() int
}
