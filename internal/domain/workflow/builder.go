package workflow

import (
	"context"
	"fmt"
	"sort"
)

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns the transition table for the given source state
	Configure(state State) StateConfiguration

	// Build creates a state machine positioned at the given state
	Build(initialState State) StateMachine
}

// StateConfiguration configures transitions out of a single state
type StateConfiguration interface {
	// Permit allows a trigger to move the machine to the target state
	Permit(trigger Trigger, toState State) StateConfiguration
}

type stateConfig struct {
	edges map[Trigger]State
}

type stateMachineBuilder struct {
	configurations map[State]*stateConfig
}

type stateMachine struct {
	currentState State
	edges        map[State]map[Trigger]State
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[State]*stateConfig),
	}
}

func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{edges: make(map[Trigger]State)}
		b.configurations[state] = config
	}
	return config
}

// Build snapshots the transition table so later Configure calls do not leak into built machines.
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	edges := make(map[State]map[Trigger]State, len(b.configurations))
	for state, config := range b.configurations {
		copied := make(map[Trigger]State, len(config.edges))
		for trigger, to := range config.edges {
			copied[trigger] = to
		}
		edges[state] = copied
	}

	return &stateMachine{
		currentState: initialState,
		edges:        edges,
	}
}

// Permit panics when the same trigger is configured twice for one state: the lifecycle is deterministic.
func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	if existing, ok := c.edges[trigger]; ok && existing != toState {
		panic(fmt.Sprintf("trigger %s already permitted to %s", trigger, existing))
	}
	c.edges[trigger] = toState
	return c
}

func (m *stateMachine) State() State {
	return m.currentState
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	_, ok := m.edges[m.currentState][trigger]
	return ok
}

func (m *stateMachine) Target(trigger Trigger) (State, error) {
	to, ok := m.edges[m.currentState][trigger]
	if !ok {
		return "", fmt.Errorf("%w: cannot fire trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}
	return to, nil
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to, err := m.Target(trigger)
	if err != nil {
		return err
	}
	m.currentState = to
	return nil
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.edges[m.currentState]))
	for trigger := range m.edges[m.currentState] {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
