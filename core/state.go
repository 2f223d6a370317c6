package core

import "fmt"

// State is the lifecycle state of a negotiation session. The progression is
// linear (CREATED through COMPLETED) with two exceptions: SYNTHESIZING may
// loop onto itself for additional aggregator rounds, and FAILED is reachable
// from every non-terminal state.
type State string

const (
	StateCreated        State = "CREATED"
	StateFormulating    State = "FORMULATING"
	StateFormulated     State = "FORMULATED"
	StateEncoding       State = "ENCODING"
	StateOffering       State = "OFFERING"
	StateBarrierWaiting State = "BARRIER_WAITING"
	StateSynthesizing   State = "SYNTHESIZING"
	StateCompleted      State = "COMPLETED"
	StateFailed         State = "FAILED"
)

// next maps each state to its single legal forward successor.
var next = map[State]State{
	StateCreated:        StateFormulating,
	StateFormulating:    StateFormulated,
	StateFormulated:     StateEncoding,
	StateEncoding:       StateOffering,
	StateOffering:       StateBarrierWaiting,
	StateBarrierWaiting: StateSynthesizing,
	StateSynthesizing:   StateCompleted,
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// CanTransition reports whether moving from s to target is legal.
func (s State) CanTransition(target State) bool {
	if s.Terminal() {
		return false
	}
	if target == StateFailed {
		return true
	}
	if s == StateSynthesizing && target == StateSynthesizing {
		return true
	}
	return next[s] == target
}

// IllegalTransitionError reports an attempted transition outside the state
// machine. Sessions are never failed because of one; the attempt is rejected
// and the session left untouched.
type IllegalTransitionError struct {
	From, To State
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}
