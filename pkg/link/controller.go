// ABOUTME: Realtime beat position controller
// ABOUTME: Follows a session timeline when enabled and counts samples locally otherwise
package link

import (
	"math"
	"sync"
	"sync/atomic"
)

// Span describes the beat positions covered by one callback buffer
type Span struct {
	// Start is the beat at the first frame
	Start float64

	// BeatsPerSample is the beat increment per frame
	BeatsPerSample float64

	// Tempo in BPM used for the buffer
	Tempo float64

	// Linked is true when the position followed the session
	Linked bool
}

// BeatAt returns the beat at a frame offset within the buffer
func (s Span) BeatAt(frame int) float64 {
	return s.Start + float64(frame)*s.BeatsPerSample
}

// End returns the beat after the last frame of a buffer of n frames
func (s Span) End(frames int) float64 {
	return s.BeatAt(frames)
}

// Controller tracks the engine's musical position.
//
// Control goroutines call SetEnabled, SetTempo and Close. The audio callback
// calls Advance; it only loads atomics and touches fields nothing else
// writes.
type Controller struct {
	session Session
	quantum float64

	enabled  atomic.Bool
	timeline atomic.Pointer[Timeline]
	tempo    atomic.Uint64 // float64 bits, tempo used while unlinked
	position atomic.Uint64 // float64 bits, beat at the start of the last buffer

	mu     sync.Mutex
	cancel func()

	// owned by the audio callback
	beat    float64
	started bool
}

// NewController creates a disabled controller for session
func NewController(session Session, quantum float64) *Controller {
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	c := &Controller{
		session: session,
		quantum: quantum,
	}

	tempo := DefaultTempo
	if session != nil {
		tempo = session.Timeline().Tempo
	}
	c.tempo.Store(math.Float64bits(tempo))
	return c
}

// SetEnabled subscribes to or leaves the session. Safe while the audio
// callback is running.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enabled == c.enabled.Load() {
		return
	}

	if !enabled {
		c.enabled.Store(false)
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		return
	}

	if c.session == nil {
		return
	}
	c.cancel = c.session.Subscribe(func(tl Timeline) {
		c.timeline.Store(&tl)
	})
	c.enabled.Store(true)
}

// Enabled reports whether the position follows the session
func (c *Controller) Enabled() bool {
	return c.enabled.Load()
}

// Quantum returns the phase period in beats
func (c *Controller) Quantum() float64 {
	return c.quantum
}

// Session returns the session followed when enabled
func (c *Controller) Session() Session {
	return c.session
}

// SetTempo changes tempo. When linked the change goes to the session and
// reaches every participant; the local tempo is updated either way.
func (c *Controller) SetTempo(bpm float64) {
	bpm = ClampTempo(bpm)
	c.tempo.Store(math.Float64bits(bpm))
	if c.enabled.Load() && c.session != nil {
		c.session.SetTempo(bpm)
	}
}

// Tempo returns the tempo in effect
func (c *Controller) Tempo() float64 {
	if c.enabled.Load() {
		if tl := c.timeline.Load(); tl != nil {
			return tl.Tempo
		}
	}
	return math.Float64frombits(c.tempo.Load())
}

// Position returns the beat at the start of the last rendered buffer
func (c *Controller) Position() float64 {
	return math.Float64frombits(c.position.Load())
}

// Phase returns Position wrapped to the quantum
func (c *Controller) Phase() float64 {
	return Phase(c.Position(), c.quantum)
}

// Peers returns the session peer count, or zero when unlinked
func (c *Controller) Peers() int {
	if !c.enabled.Load() || c.session == nil {
		return 0
	}
	return c.session.Peers()
}

// Advance computes the span for a buffer of frames heard at hostTime.
// Only the audio callback may call it.
//
// While linked the position converges on the session beat with the same
// phase within the quantum. A forward correction is limited to one buffer
// of beats and a backward one to half a buffer, so toggling link never moves
// the output more than one callback period and buffer starts keep
// increasing. While unlinked the position keeps counting samples from wherever
// it was, at the last session tempo.
func (c *Controller) Advance(hostTime int64, frames, sampleRate int) Span {
	var span Span

	tl := c.timeline.Load()
	if c.enabled.Load() && tl != nil {
		bps := tl.Tempo / 60 / float64(sampleRate)
		target := tl.BeatAtTime(hostTime)

		if !c.started {
			c.beat = target
			c.started = true
		} else {
			aligned := target + c.quantum*math.Round((c.beat-target)/c.quantum)
			limit := float64(frames) * bps
			c.beat += math.Max(-limit/2, math.Min(limit, aligned-c.beat))
		}

		c.tempo.Store(math.Float64bits(tl.Tempo))
		span = Span{Start: c.beat, BeatsPerSample: bps, Tempo: tl.Tempo, Linked: true}
	} else {
		tempo := math.Float64frombits(c.tempo.Load())
		c.started = true
		span = Span{Start: c.beat, BeatsPerSample: tempo / 60 / float64(sampleRate), Tempo: tempo}
	}

	c.beat = span.End(frames)
	c.position.Store(math.Float64bits(span.Start))
	return span
}

// Close leaves the session
func (c *Controller) Close() {
	c.SetEnabled(false)
}
