package node

import (
	"sync"
	"sync/atomic"
)

// State captures the state of a skip graph node: Joining, Serving or
// Shutdown.
type State uint32

const (
	// Joining means the introducer has not accepted the node yet.
	Joining State = iota
	// Serving is the normal state.
	Serving
	// Shutdown is shutdown
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Joining:
		return "Joining"
	case Serving:
		return "Serving"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state State
	wg    sync.WaitGroup
}

func (b *state) getState() State {
	stateAddr := (*uint32)(&b.state)
	return State(atomic.LoadUint32(stateAddr))
}

func (b *state) setState(s State) {
	stateAddr := (*uint32)(&b.state)
	atomic.StoreUint32(stateAddr, uint32(s))
}

// Start a goroutine and add it to waitgroup
func (b *state) goFunc(f func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		f()
	}()
}

func (b *state) waitRoutines() {
	b.wg.Wait()
}
