package workflow

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func lifecycleBuilder() StateMachineBuilder {
	builder := NewBuilder()
	builder.Configure(StatePending).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected)
	builder.Configure(StateApproved).
		Permit(TriggerRedeem, StateRedeemed)
	return builder
}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StatePending, false},
		{StateApproved, false},
		{StateRejected, true},
		{StateRedeemed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"pending", StatePending, true},
		{"redeemed", StateRedeemed, true},
		{"portuguese value is not canonical", State("APROVADA"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseState(t *testing.T) {
	tests := []struct {
		raw        string
		want       State
		wantLegacy bool
		wantErr    bool
	}{
		{"PENDING", StatePending, false, false},
		{" approved ", StateApproved, false, false},
		{"PENDENTE", StatePending, true, false},
		{"APROVADA", StateApproved, true, false},
		{"AUTORIZADA", StateApproved, true, false},
		{"REPROVADA", StateRejected, true, false},
		{"CANCELADA", StateRejected, true, false},
		{"utilizada", StateRedeemed, true, false},
		{"ARQUIVADA", "", false, true},
		{"", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, legacy, err := ParseState(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidState) {
					t.Fatalf("ParseState() error = %v, want %v", err, ErrInvalidState)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseState() unexpected error: %v", err)
			}
			if got != tt.want || legacy != tt.wantLegacy {
				t.Errorf("ParseState() = (%v, %v), want (%v, %v)", got, legacy, tt.want, tt.wantLegacy)
			}
		})
	}
}

func TestBuilder_ConfigureReturnsSameConfig(t *testing.T) {
	builder := NewBuilder()
	if builder.Configure(StatePending) != builder.Configure(StatePending) {
		t.Error("Configure() should return same config for same state")
	}
}

func TestBuilder_Panics(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"configure invalid state", func() { NewBuilder().Configure(State("INVALID")) }},
		{"build invalid initial state", func() { NewBuilder().Build(State("INVALID")) }},
		{"permit invalid target", func() { NewBuilder().Configure(StatePending).Permit(TriggerApprove, State("X")) }},
		{"permit conflicting target", func() {
			NewBuilder().Configure(StatePending).
				Permit(TriggerApprove, StateApproved).
				Permit(TriggerApprove, StateRejected)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("%s should panic", tt.name)
				}
			}()
			tt.fn()
		})
	}
}

func TestStateMachine_LegalEdges(t *testing.T) {
	tests := []struct {
		from    State
		trigger Trigger
		to      State
	}{
		{StatePending, TriggerApprove, StateApproved},
		{StatePending, TriggerReject, StateRejected},
		{StateApproved, TriggerRedeem, StateRedeemed},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.trigger), func(t *testing.T) {
			machine := lifecycleBuilder().Build(tt.from)
			if err := machine.Fire(context.Background(), tt.trigger); err != nil {
				t.Fatalf("Fire() failed: %v", err)
			}
			if machine.State() != tt.to {
				t.Errorf("State after Fire() = %v, want %v", machine.State(), tt.to)
			}
		})
	}
}

func TestStateMachine_EveryOtherPairIsRejected(t *testing.T) {
	legal := map[State]map[Trigger]bool{
		StatePending:  {TriggerApprove: true, TriggerReject: true},
		StateApproved: {TriggerRedeem: true},
	}
	triggers := []Trigger{TriggerApprove, TriggerReject, TriggerRedeem}

	for _, state := range AllStates() {
		for _, trigger := range triggers {
			if legal[state][trigger] {
				continue
			}
			machine := lifecycleBuilder().Build(state)
			if machine.CanFire(trigger) {
				t.Errorf("CanFire(%s) from %s should be false", trigger, state)
			}
			err := machine.Fire(context.Background(), trigger)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Fire(%s) from %s error = %v, want %v", trigger, state, err, ErrInvalidTransition)
			}
			if machine.State() != state {
				t.Errorf("state changed on rejected Fire(): %s -> %s", state, machine.State())
			}
		}
	}
}

func TestStateMachine_Target(t *testing.T) {
	machine := lifecycleBuilder().Build(StateApproved)

	to, err := machine.Target(TriggerRedeem)
	if err != nil || to != StateRedeemed {
		t.Errorf("Target(REDEEM) = (%v, %v), want (%v, nil)", to, err, StateRedeemed)
	}
	if machine.State() != StateApproved {
		t.Error("Target() must not change the current state")
	}
}

func TestStateMachine_FireHonoursCancelledContext(t *testing.T) {
	machine := lifecycleBuilder().Build(StatePending)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := machine.Fire(ctx, TriggerApprove); !errors.Is(err, context.Canceled) {
		t.Fatalf("Fire() error = %v, want context.Canceled", err)
	}
	if machine.State() != StatePending {
		t.Errorf("State = %v, want %v", machine.State(), StatePending)
	}
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	tests := []struct {
		state State
		want  []Trigger
	}{
		{StatePending, []Trigger{TriggerApprove, TriggerReject}},
		{StateApproved, []Trigger{TriggerRedeem}},
		{StateRejected, []Trigger{}},
		{StateRedeemed, []Trigger{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			got := lifecycleBuilder().Build(tt.state).PermittedTriggers()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PermittedTriggers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuilder_BuildIsolatesMachines(t *testing.T) {
	builder := lifecycleBuilder()
	machine := builder.Build(StateApproved)

	builder.Configure(StateRejected).Permit(TriggerApprove, StateApproved)

	if lifecycleBuilder().Build(StateRejected).CanFire(TriggerApprove) {
		t.Error("fresh builder should not permit APPROVE from REJECTED")
	}
	if machine.CanFire(TriggerApprove) {
		t.Error("machine built before Configure should not observe later edges")
	}
}
