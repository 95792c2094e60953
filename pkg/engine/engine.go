// ABOUTME: Audio engine lifecycle
// ABOUTME: Owns the device stream, ring, generator and link controller behind five control operations
package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio"
	"github.com/Resonate-Protocol/linkaudio/pkg/audio/output"
	"github.com/Resonate-Protocol/linkaudio/pkg/audio/ring"
	"github.com/Resonate-Protocol/linkaudio/pkg/link"
)

// Engine renders a continuous output stream, optionally locked to a link
// session.
//
// Control methods are safe for concurrent use and are no-ops on a nil or
// closed engine. The realtime callback only reads the playing flag, the
// link controller's atomics and the ring.
type Engine struct {
	config Config
	device output.Device
	link   *link.Controller

	mu        sync.Mutex
	state     State
	stream    output.Stream
	ring      *ring.Buffer
	gen       *generator
	streamErr error

	// counters carried over from closed rings
	overflows  uint64
	underflows uint64

	// fill target reached by the tuner, reused when the stream reopens
	tunedFrames int

	playing   atomic.Bool
	callbacks atomic.Uint64
	frames    atomic.Uint64
	restarts  atomic.Uint64

	restartMu sync.Mutex
}

// New creates an engine. It fails with ErrNoDevice when the backend has no
// output device.
func New(config Config) (*Engine, error) {
	config = config.withDefaults()
	if err := config.Format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}

	device := config.Device
	if device == nil {
		d, err := output.New(config.Backend)
		if err != nil {
			return nil, err
		}
		device = d
	}

	if err := device.Probe(); err != nil {
		device.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}

	session := config.Session
	if session == nil {
		session = link.NewLocalSession(config.Clock, config.Tempo)
	}

	e := &Engine{
		config: config,
		device: device,
		link:   link.NewController(session, config.Quantum),
		state:  StateCreated,
	}

	log.Printf("Engine created: %s via %s, %d frames/buffer", config.Format, device.Name(), config.FramesPerBuffer)
	return e, nil
}

// CreateStream opens and starts the output stream. Calling it again, or on a
// nil or closed engine, does nothing.
func (e *Engine) CreateStream() error {
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDestroyed || e.stream != nil {
		return nil
	}
	return e.openStream()
}

// openStream builds the stream pipeline (must hold e.mu)
func (e *Engine) openStream() error {
	r := &renderer{}
	var renderFn output.Callback = func(out []float32) { r.render(out) }

	stream, err := e.device.Open(output.StreamParams{
		Format:          e.config.Format,
		FramesPerBuffer: e.config.FramesPerBuffer,
		OnError:         e.handleStreamError,
	}, renderFn)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	// The callback does not run before Start, so the renderer can be
	// completed from the negotiated stream parameters
	format := stream.Format()
	period := stream.FramesPerBuffer()
	ringFrames := max(e.config.RingFrames, 2*period)

	rb := ring.New(ringFrames, format.Channels)
	*r = *newRenderer(e, format, rb)

	gen := newGenerator(e.config.Source, rb, &e.playing, period, format.Duration(period)/2)
	if e.config.AutoTune {
		gen.enableTuning(e.tunedFrames)
	}
	gen.start()

	if err := stream.Start(); err != nil {
		stream.Close()
		gen.stop()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	e.stream = stream
	e.ring = rb
	e.gen = gen
	if e.playing.Load() {
		e.state = StatePlaying
		gen.poke()
	} else {
		e.state = StateStreamReady
	}

	log.Printf("Stream started: %s, %d frames/buffer, ring %d frames, fill target %d", format, period, ringFrames, gen.targetFrames())
	return nil
}

// closeStream stops the callback, then releases what it used (must hold e.mu)
func (e *Engine) closeStream() {
	if e.stream == nil {
		return
	}

	// Waits for an in-flight callback; nothing reads the ring afterwards
	if err := e.stream.Close(); err != nil {
		log.Printf("Warning: stream close error: %v", err)
	}
	e.gen.stop()

	if e.config.AutoTune {
		e.tunedFrames = e.gen.targetFrames()
	}
	e.overflows += e.ring.Overflows()
	e.underflows += e.ring.Underflows()

	e.stream = nil
	e.gen = nil
	e.ring = nil
}

// Play starts or stops audible output. It does nothing until a stream exists.
func (e *Engine) Play(on bool) {
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDestroyed || e.stream == nil {
		return
	}

	e.playing.Store(on)
	if on {
		e.state = StatePlaying
		e.gen.poke()
	} else {
		e.state = StateStreamReady
	}
}

// EnableLink toggles following the link session without touching the stream
func (e *Engine) EnableLink(on bool) {
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDestroyed {
		return
	}

	if on == e.link.Enabled() {
		return
	}
	e.link.SetEnabled(on)
	log.Printf("Link enabled: %v", on)
}

// SetTempo changes tempo; shared with the session when linked
func (e *Engine) SetTempo(bpm float64) {
	if e == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDestroyed {
		return
	}
	e.link.SetTempo(bpm)
}

// Restart closes and reopens the stream, keeping the playing flag.
// Concurrent restarts are dropped rather than queued.
func (e *Engine) Restart() error {
	if e == nil {
		return ErrDestroyed
	}

	if !e.restartMu.TryLock() {
		log.Printf("Restart stream operation already in progress - ignoring this request")
		return nil
	}
	defer e.restartMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.state == StateDestroyed:
		return ErrDestroyed
	case e.stream == nil:
		return ErrNoStream
	}

	e.closeStream()
	if err := e.openStream(); err != nil {
		e.state = StateCreated
		return err
	}
	e.restarts.Add(1)
	log.Printf("Stream restarted")
	return nil
}

// handleStreamError receives fatal conditions from the device
func (e *Engine) handleStreamError(err error) {
	log.Printf("Stream error: %v", err)

	e.mu.Lock()
	if e.state == StateDestroyed {
		e.mu.Unlock()
		return
	}
	e.streamErr = err
	e.mu.Unlock()

	if e.config.OnError != nil {
		e.config.OnError(err)
	}

	if e.config.RestartOnDisconnect && errors.Is(err, output.ErrDeviceStopped) {
		if rerr := e.Restart(); rerr != nil {
			log.Printf("Failed to restart stream: %v", rerr)
		}
	}
}

// Close stops playback, closes the stream, leaves the link session and
// releases the device. Safe to call more than once and on nil.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDestroyed {
		return nil
	}

	e.playing.Store(false)
	e.closeStream()
	e.link.Close()

	err := e.device.Close()
	e.state = StateDestroyed
	log.Printf("Engine destroyed")

	if err != nil {
		return fmt.Errorf("failed to close device: %w", err)
	}
	return nil
}

// State returns the lifecycle stage
func (e *Engine) State() State {
	if e == nil {
		return StateUninitialized
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsPlaying reports the playing flag
func (e *Engine) IsPlaying() bool {
	return e != nil && e.playing.Load()
}

// LinkEnabled reports whether the engine follows the session
func (e *Engine) LinkEnabled() bool {
	return e != nil && e.link.Enabled()
}

// Link exposes the position controller
func (e *Engine) Link() *link.Controller {
	if e == nil {
		return nil
	}
	return e.link
}

// Format returns the configured output format
func (e *Engine) Format() audio.Format {
	if e == nil {
		return audio.Format{}
	}
	return e.config.Format
}

// Stats is a snapshot of engine counters
type Stats struct {
	State       State
	Playing     bool
	LinkEnabled bool
	Backend     string

	Tempo   float64
	Beat    float64
	Phase   float64
	Quantum float64
	Peers   int

	Callbacks  uint64
	Frames     uint64
	Underflows uint64
	Overflows  uint64
	Restarts   uint64

	// BufferFrames is the generator's fill target; it grows on underflow
	// when AutoTune is set
	BufferFrames int

	// StreamErr is the last fatal stream error reported by the device
	StreamErr error
}

// Stats returns current counters
func (e *Engine) Stats() Stats {
	if e == nil {
		return Stats{}
	}

	e.mu.Lock()
	s := Stats{
		State:      e.state,
		Backend:    e.device.Name(),
		Overflows:  e.overflows,
		Underflows: e.underflows,
		StreamErr:  e.streamErr,
	}
	if e.ring != nil {
		s.Overflows += e.ring.Overflows()
		s.Underflows += e.ring.Underflows()
		s.BufferFrames = e.gen.targetFrames()
	}
	e.mu.Unlock()

	s.Playing = e.playing.Load()
	s.LinkEnabled = e.link.Enabled()
	s.Tempo = e.link.Tempo()
	s.Beat = e.link.Position()
	s.Phase = e.link.Phase()
	s.Quantum = e.link.Quantum()
	s.Peers = e.link.Peers()
	s.Callbacks = e.callbacks.Load()
	s.Frames = e.frames.Load()
	s.Restarts = e.restarts.Load()
	return s
}
