//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform callback output using PortAudio
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

// PortAudio output device
type PortAudio struct {
	mu          sync.Mutex
	initialized bool
}

// NewPortAudio creates a new PortAudio device
func NewPortAudio() Device {
	return &PortAudio{}
}

// Name identifies the backend
func (p *PortAudio) Name() string {
	return "portaudio"
}

// initialize starts the library once (must hold p.mu)
func (p *PortAudio) initialize() error {
	if p.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	p.initialized = true
	return nil
}

// Probe checks a default output device exists
func (p *PortAudio) Probe() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	info, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	log.Printf("Selected device: %s (%d channels, low latency %v)",
		info.Name, info.MaxOutputChannels, info.DefaultLowOutputLatency)
	return nil
}

// Open opens the default output stream
func (p *PortAudio) Open(params StreamParams, cb Callback) (Stream, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.initialize(); err != nil {
		return nil, err
	}

	s := &portAudioStream{
		cb:     cb,
		format: params.Format,
		frames: params.FramesPerBuffer,
	}

	stream, err := portaudio.OpenDefaultStream(0, params.Format.Channels, float64(params.Format.SampleRate),
		params.FramesPerBuffer, s.process)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	s.stream = stream

	log.Printf("Audio output opened: %s, %d frames/buffer (portaudio)", params.Format, params.FramesPerBuffer)
	return s, nil
}

// Close terminates the library
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}
	p.initialized = false
	return portaudio.Terminate()
}

type portAudioStream struct {
	stream *portaudio.Stream
	cb     Callback
	gate   gate
	format audio.Format
	frames int
}

func (s *portAudioStream) process(out []float32) {
	s.gate.run(out, s.cb)
}

func (s *portAudioStream) Start() error {
	if s.gate.isClosed() {
		return ErrStreamClosed
	}
	return s.stream.Start()
}

func (s *portAudioStream) Close() error {
	if !s.gate.close() {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		log.Printf("Warning: portaudio stop error: %v", err)
	}
	return s.stream.Close()
}

func (s *portAudioStream) Format() audio.Format {
	return s.format
}

func (s *portAudioStream) FramesPerBuffer() int {
	return s.frames
}
