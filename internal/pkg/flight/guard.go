package flight

import (
	"fmt"
	"sync/atomic"
)

// State of a single-flight guard.
//
//	IDLE ──acquire──► FETCHING ──release──► IDLE
type State int32

const (
	StateIdle State = iota
	StateFetching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetching:
		return "FETCHING"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var validTransitions = map[State]State{
	StateIdle:     StateFetching,
	StateFetching: StateIdle,
}

// IsTransitionAllowed reports whether from → to is an edge of the guard graph.
func IsTransitionAllowed(from, to State) bool {
	next, ok := validTransitions[from]
	return ok && next == to
}

// Guard allows at most one operation in flight.
type Guard struct {
	state atomic.Int32
}

func (g *Guard) State() State { return State(g.state.Load()) }

// TryAcquire moves IDLE → FETCHING. False means another operation holds it.
func (g *Guard) TryAcquire() bool {
	return g.transition(StateIdle, StateFetching)
}

// Release moves FETCHING → IDLE.
func (g *Guard) Release() error {
	if !g.transition(StateFetching, StateIdle) {
		return fmt.Errorf("flight: illegal transition %s -> %s", g.State(), StateIdle)
	}
	return nil
}

func (g *Guard) transition(from, to State) bool {
	if !IsTransitionAllowed(from, to) {
		return false
	}
	return g.state.CompareAndSwap(int32(from), int32(to))
}
