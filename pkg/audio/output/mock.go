// ABOUTME: In-memory output device driven by the caller
// ABOUTME: Used by tests and headless runs to pump the render callback deterministically
package output

import (
	"math"
	"sync"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio"
)

// Mock is a Device whose callbacks fire only when Tick is called
type Mock struct {
	// Unavailable makes Probe and Open fail with ErrUnavailable
	Unavailable bool

	// FramesPerBuffer overrides the requested buffer size when non-zero,
	// mimicking a device that negotiates its own period
	FramesPerBuffer int

	mu      sync.Mutex
	opened  int
	streams []*MockStream
	closed  bool
}

// NewMock creates a mock device
func NewMock() *Mock {
	return &Mock{}
}

// Name identifies the backend
func (m *Mock) Name() string {
	return "mock"
}

// Probe fails only when the mock is marked unavailable
func (m *Mock) Probe() error {
	if m.Unavailable {
		return ErrUnavailable
	}
	return nil
}

// Open records a new stream
func (m *Mock) Open(params StreamParams, cb Callback) (Stream, error) {
	if m.Unavailable {
		return nil, ErrUnavailable
	}
	if err := validateParams(params); err != nil {
		return nil, err
	}

	frames := params.FramesPerBuffer
	if m.FramesPerBuffer > 0 {
		frames = m.FramesPerBuffer
	}

	s := &MockStream{
		cb:      cb,
		format:  params.Format,
		frames:  frames,
		onError: params.OnError,
		buf:     make([]float32, params.Format.Samples(frames)),
	}

	m.mu.Lock()
	m.opened++
	m.streams = append(m.streams, s)
	m.mu.Unlock()

	return s, nil
}

// Close marks the device closed
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Opened returns how many streams have been opened
func (m *Mock) Opened() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// Stream returns the most recently opened stream, or nil
func (m *Mock) Stream() *MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

// Closed reports whether Close was called
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockStream is a stream pumped by Tick
type MockStream struct {
	cb      Callback
	gate    gate
	format  audio.Format
	frames  int
	onError func(error)

	mu      sync.Mutex
	started bool
	buf     []float32
}

// Tick runs one callback and returns a copy of the rendered buffer.
// The buffer is pre-filled with NaN so untouched samples show up.
// Returns nil when the stream is not started or already closed.
func (s *MockStream) Tick() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.gate.isClosed() {
		return nil
	}

	nan := float32(math.NaN())
	for i := range s.buf {
		s.buf[i] = nan
	}
	s.gate.run(s.buf, s.cb)

	out := make([]float32, len(s.buf))
	copy(out, s.buf)
	return out
}

// Fail simulates the device reporting a fatal error
func (s *MockStream) Fail(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// Started reports whether Start was called
func (s *MockStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Closed reports whether Close was called
func (s *MockStream) Closed() bool {
	return s.gate.isClosed()
}

func (s *MockStream) Start() error {
	if s.gate.isClosed() {
		return ErrStreamClosed
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *MockStream) Close() error {
	s.gate.close()
	return nil
}

func (s *MockStream) Format() audio.Format {
	return s.format
}

func (s *MockStream) FramesPerBuffer() int {
	return s.frames
}
