package batch

import "sync/atomic"

// State is the batch lifecycle of spec.md §4.8.
type State int32

const (
	StateOpen State = iota
	StateExecuting
	StateDone
)

type stateBox struct{ v atomic.Int32 }

func newStateBox() *stateBox {
	b := &stateBox{}
	b.v.Store(int32(StateOpen))
	return b
}

func (b *stateBox) load() State { return State(b.v.Load()) }

func (b *stateBox) transition(from, to State) bool {
	return b.v.CompareAndSwap(int32(from), int32(to))
}
