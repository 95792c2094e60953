// ABOUTME: Host clock sources
// ABOUTME: Monotonic system clock and a manually advanced clock for tests
package link

import (
	"sync/atomic"
	"time"
)

// Clock returns host time in microseconds
type Clock interface {
	Micros() int64
}

var processStart = time.Now()

// SystemClock is a monotonic clock counting from process start.
// All SystemClock values share the same epoch.
type SystemClock struct{}

// Micros returns microseconds since process start
func (SystemClock) Micros() int64 {
	return time.Since(processStart).Microseconds()
}

// ManualClock only moves when told to
type ManualClock struct {
	now atomic.Int64
}

// NewManualClock creates a clock reading start
func NewManualClock(start int64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

// Micros returns the current reading
func (c *ManualClock) Micros() int64 {
	return c.now.Load()
}

// Set jumps to an absolute reading
func (c *ManualClock) Set(micros int64) {
	c.now.Store(micros)
}

// Advance moves the clock forward
func (c *ManualClock) Advance(d time.Duration) {
	c.now.Add(d.Microseconds())
}

// AdvanceMicros moves the clock forward by a raw microsecond count
func (c *ManualClock) AdvanceMicros(us int64) {
	c.now.Add(us)
}
