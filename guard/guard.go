package guard

import (
	"sync/atomic"
)

type State int32

const (
	Idle State = iota
	Executing
)

func (s State) String() string {
	if s == Executing {
		return "executing"
	}
	return "idle"
}

// Guard admits at most one pipeline at a time. Attempts made while a pipeline
// is executing are dropped, never queued.
type Guard struct {
	state   atomic.Int32
	dropped atomic.Uint64
	onDrop  func()
}

// New creates an idle guard. onDrop, if not nil, is invoked for every rejected attempt.
func New(onDrop func()) *Guard {
	return &Guard{onDrop: onDrop}
}

// TryAcquire moves the guard from Idle to Executing. It returns false, and
// counts a drop, if a pipeline is already executing.
func (g *Guard) TryAcquire() bool {
	if g.state.CompareAndSwap(int32(Idle), int32(Executing)) {
		return true
	}
	g.dropped.Add(1)
	if g.onDrop != nil {
		g.onDrop()
	}
	return false
}

// Release moves the guard back to Idle. Releasing an idle guard is a programming error.
func (g *Guard) Release() {
	if !g.state.CompareAndSwap(int32(Executing), int32(Idle)) {
		panic("guard: release of idle guard")
	}
}

func (g *Guard) State() State {
	return State(g.state.Load())
}

// Dropped returns how many attempts were rejected so far.
func (g *Guard) Dropped() uint64 {
	return g.dropped.Load()
}

// Go runs fn in a new goroutine if the guard is idle and reports whether it
// was admitted. The guard is released when fn returns.
func (g *Guard) Go(fn func()) bool {
	if !g.TryAcquire() {
		return false
	}
	go func() {
		defer g.Release()
		fn()
	}()
	return true
}
