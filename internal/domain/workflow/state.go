package workflow

// State represents a requisition state in the voucher lifecycle
type State string

const (
	StatePending  State = "PENDING"
	StateApproved State = "APPROVED"
	StateRejected State = "REJECTED"
	StateRedeemed State = "REDEEMED"
)

var validStates = map[State]bool{
	StatePending:  true,
	StateApproved: true,
	StateRejected: true,
	StateRedeemed: true,
}

var terminalStates = map[State]bool{
	StateRejected: true,
	StateRedeemed: true,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is one of the four lifecycle states
func (s State) IsValid() bool {
	return validStates[s]
}

// AllStates lists the lifecycle states in display order
func AllStates() []State {
	return []State{StatePending, StateApproved, StateRejected, StateRedeemed}
}
