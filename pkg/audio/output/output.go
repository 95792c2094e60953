// ABOUTME: Audio device and stream interface definitions
// ABOUTME: Pull-model backends that invoke a realtime callback to fill buffers
package output

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio"
)

var (
	// ErrUnavailable means the backend found no usable output device
	ErrUnavailable = errors.New("no audio output device available")

	// ErrDeviceStopped means the device stopped without being asked to (e.g. unplugged)
	ErrDeviceStopped = errors.New("audio device stopped unexpectedly")

	// ErrStreamClosed is returned when starting a stream that was already closed
	ErrStreamClosed = errors.New("stream closed")
)

// Callback fills out with interleaved frames. It runs on the backend's
// realtime thread and must not block, allocate, log or take locks.
type Callback func(out []float32)

// StreamParams configures a stream
type StreamParams struct {
	Format          audio.Format
	FramesPerBuffer int

	// OnError receives fatal stream conditions. It is never called from the
	// realtime thread.
	OnError func(error)
}

// Stream is an open output stream
type Stream interface {
	// Start begins invoking the callback
	Start() error

	// Close stops the stream. It returns only after any in-progress
	// callback has finished; the callback is never invoked afterwards.
	Close() error

	// Format returns the negotiated format
	Format() audio.Format

	// FramesPerBuffer returns the nominal callback size
	FramesPerBuffer() int
}

// Device is an audio output backend
type Device interface {
	// Name identifies the backend
	Name() string

	// Probe checks an output device exists
	Probe() error

	// Open creates a stream; the callback does not run until Start
	Open(params StreamParams, cb Callback) (Stream, error)

	// Close releases backend resources. Streams must be closed first.
	Close() error
}

// Backends lists the names accepted by New
var Backends = []string{"malgo", "oto", "portaudio", "mock"}

// New creates a device by backend name. Empty selects malgo.
func New(backend string) (Device, error) {
	switch backend {
	case "", "malgo":
		return NewMalgo(), nil
	case "oto":
		return NewOto(), nil
	case "portaudio":
		return NewPortAudio(), nil
	case "mock":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q (supported: %v)", backend, Backends)
	}
}

// reportAsync hands an error to the owner off the realtime thread
func reportAsync(onError func(error), err error) {
	if onError != nil {
		go onError(err)
	}
}

func validateParams(p StreamParams) error {
	if err := p.Format.Validate(); err != nil {
		return err
	}
	if p.FramesPerBuffer <= 0 {
		return fmt.Errorf("invalid frames per buffer: %d", p.FramesPerBuffer)
	}
	return nil
}
