package transport

import "sync/atomic"

// State is the endpoint lifecycle from idle through closed.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateReady
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// stateBox is a CAS-guarded State, giving endpoints an explicit,
// race-free transition table instead of ad hoc booleans.
type stateBox struct {
	v atomic.Int32
}

func newStateBox(initial State) *stateBox {
	b := &stateBox{}
	b.v.Store(int32(initial))
	return b
}

func (b *stateBox) load() State { return State(b.v.Load()) }

// transition moves from -> to iff the box currently holds from.
func (b *stateBox) transition(from, to State) bool {
	return b.v.CompareAndSwap(int32(from), int32(to))
}

// force unconditionally sets the state (used on terminal transitions where
// the origin state doesn't matter, e.g. any state -> Closed).
func (b *stateBox) force(to State) {
	b.v.Store(int32(to))
}
