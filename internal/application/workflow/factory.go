package workflow

import (
	domainwf "github.com/garyjia/river-voucher/internal/domain/workflow"
)

var lifecycle = func() domainwf.StateMachineBuilder {
	builder := domainwf.NewBuilder()

	// A pending requisition is decided once by a representative
	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	// An approved voucher is consumed once at boarding
	builder.Configure(domainwf.StateApproved).
		Permit(domainwf.TriggerRedeem, domainwf.StateRedeemed)

	builder.Configure(domainwf.StateRejected)
	builder.Configure(domainwf.StateRedeemed)

	return builder
}()

// BuildVoucherStateMachine creates a state machine positioned at the given voucher state
func BuildVoucherStateMachine(initialState domainwf.State) domainwf.StateMachine {
	return lifecycle.Build(initialState)
}
