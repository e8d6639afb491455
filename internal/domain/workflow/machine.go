package workflow

import "context"

// StateMachine tracks the current state of one requisition and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is permitted in the current state
	CanFire(trigger Trigger) bool

	// Target returns the state the trigger leads to from the current state
	Target(trigger Trigger) (State, error)

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the triggers that can be fired in the current state, sorted
	PermittedTriggers() []Trigger
}
