package models

import (
	"fmt"
	"sync"
)

// ExecutionState is the lifecycle state of one evaluation.
type ExecutionState string

const (
	StatePending         ExecutionState = "pending"
	StateInProgress      ExecutionState = "in_progress"
	StateCompleted       ExecutionState = "completed"
	StateFailed          ExecutionState = "failed"
	StateWaitingApproval ExecutionState = "waiting_approval"
	StateApproved        ExecutionState = "approved"
	StateRejected        ExecutionState = "rejected"
	StateCancelled       ExecutionState = "cancelled"
)

// Terminal reports whether no further transition is expected from the state.
// Failed is not terminal in the strict sense because one explicit retry is
// permitted, but the retry path is enforced separately by the state machine.
func (s ExecutionState) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateRejected:
		return true
	}

	return false
}

// transitions is the legal transition table. Anything absent is illegal and
// rejected rather than silently applied.
var transitions = map[ExecutionState][]ExecutionState{
	StatePending:         {StateInProgress, StateCancelled},
	StateInProgress:      {StateCompleted, StateFailed, StateWaitingApproval, StateCancelled},
	StateWaitingApproval: {StateApproved, StateRejected},
	StateApproved:        {StateCompleted},
	StateRejected:        {StateFailed},
	StateFailed:          {StateInProgress}, // exactly once, on explicit retry
}

// StateMachine guards the lifecycle of one evaluation. The failed to
// in-progress transition is permitted exactly once, on an explicit retry
// request; it is never taken automatically.
type StateMachine struct {
	mu      sync.Mutex
	state   ExecutionState
	retried bool
}

// NewStateMachine returns a state machine in the pending state.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StatePending}
}

// State returns the current state.
func (m *StateMachine) State() ExecutionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Transition moves the machine to the target state, or rejects the move when
// the transition table does not allow it.
func (m *StateMachine) Transition(to ExecutionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, allowed := range transitions[m.state] {
		if allowed != to {
			continue
		}

		if m.state == StateFailed && to == StateInProgress {
			if m.retried {
				return fmt.Errorf("%w: evaluation already retried once", ErrRetryExhausted)
			}

			m.retried = true
		}

		m.state = to

		return nil
	}

	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, to)
}
