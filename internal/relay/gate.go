package relay

import (
	"runtime"
	"sync/atomic"
)

// gate implements the epoch-style reclamation discipline of the
// concurrency model: gcState >= 0 means dispatch is permitted and
// counts active readers; gcState == -1 means a reclaim cycle owns the
// registry exclusively. Readers spin rather than block because the
// critical section they guard (one frame's worth of routing) is short
// and reclamation is rare (default once per 30s).
type gate struct {
	state atomic.Int64
}

// enter blocks (spinning) until no reclaim is in progress, then records
// one active reader. Pair with every exit path calling leave.
func (g *gate) enter() {
	for {
		v := g.state.Load()
		if v == -1 {
			runtime.Gosched()
			continue
		}
		if g.state.CompareAndSwap(v, v+1) {
			return
		}
	}
}

// leave releases one active-reader slot acquired by enter.
func (g *gate) leave() {
	g.state.Add(-1)
}

// reclaim spins until no reader is active, flips the gate exclusive,
// runs fn, then reopens the gate. fn must not itself call enter/leave.
func (g *gate) reclaim(fn func()) {
	for !g.state.CompareAndSwap(0, -1) {
		runtime.Gosched()
	}
	fn()
	g.state.Store(0)
}
