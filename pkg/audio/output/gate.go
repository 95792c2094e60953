// ABOUTME: Callback gate shared by every backend
// ABOUTME: Lets Close wait for an in-flight realtime callback without locking it
package output

import (
	"runtime"
	"sync/atomic"
)

// gate tracks realtime callback entry so Close can synchronize with it.
// The callback side only touches atomics.
type gate struct {
	closed   atomic.Bool
	inflight atomic.Int32
}

func (g *gate) enter() bool {
	if g.closed.Load() {
		return false
	}
	g.inflight.Add(1)
	// Close may have landed between the check and the increment
	if g.closed.Load() {
		g.inflight.Add(-1)
		return false
	}
	return true
}

func (g *gate) exit() {
	g.inflight.Add(-1)
}

// run invokes cb unless the gate is closed, in which case out is silenced
func (g *gate) run(out []float32, cb Callback) {
	if !g.enter() {
		clear(out)
		return
	}
	defer g.exit()
	cb(out)
}

// close blocks new callbacks and waits for a running one to return.
// Returns false if the gate was already closed.
func (g *gate) close() bool {
	if g.closed.Swap(true) {
		return false
	}
	for g.inflight.Load() != 0 {
		runtime.Gosched()
	}
	return true
}

func (g *gate) isClosed() bool {
	return g.closed.Load()
}
