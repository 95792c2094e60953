// ABOUTME: Oto-based audio output implementation
// ABOUTME: Oto's player goroutine pulls frames through an io.Reader that runs the callback
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process; every Oto device shares it
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat audio.Format
)

// sharedOtoContext returns the process-wide context, creating it on first use
func sharedOtoContext(format audio.Format, framesPerBuffer int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoFormat != format {
			return nil, fmt.Errorf("oto context already running at %s, cannot reopen at %s", otoFormat, format)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   format.Duration(framesPerBuffer),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoFormat = format
	return ctx, nil
}

// Oto output device using the oto library
type Oto struct{}

// NewOto creates a new Oto device
func NewOto() *Oto {
	return &Oto{}
}

// Name identifies the backend
func (o *Oto) Name() string {
	return "oto"
}

// Probe always succeeds: oto cannot enumerate devices, failures surface at Open
func (o *Oto) Probe() error {
	return nil
}

// Open creates a player pulling from the callback
func (o *Oto) Open(params StreamParams, cb Callback) (Stream, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	ctx, err := sharedOtoContext(params.Format, params.FramesPerBuffer)
	if err != nil {
		return nil, err
	}

	s := &otoStream{
		cb:         cb,
		format:     params.Format,
		frames:     params.FramesPerBuffer,
		frameBytes: 4 * params.Format.Channels,
		onError:    params.OnError,
	}
	s.player = ctx.NewPlayer(s)
	s.player.SetBufferSize(params.FramesPerBuffer * s.frameBytes)

	log.Printf("Audio output opened: %s, %d frames/buffer (oto)", params.Format, params.FramesPerBuffer)
	return s, nil
}

// Close suspends the shared context; it cannot be destroyed and recreated
func (o *Oto) Close() error {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if err := otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
	return nil
}

type otoStream struct {
	player     *oto.Player
	cb         Callback
	gate       gate
	format     audio.Format
	frames     int
	frameBytes int
	onError    func(error)
}

// Read is invoked by oto's mixing goroutine
func (s *otoStream) Read(p []byte) (int, error) {
	n := len(p) - len(p)%s.frameBytes
	if n == 0 {
		return 0, nil
	}
	s.gate.run(audio.Float32View(p[:n]), s.cb)
	return n, nil
}

func (s *otoStream) Start() error {
	if s.gate.isClosed() {
		return ErrStreamClosed
	}
	s.player.Play()
	if err := s.player.Err(); err != nil {
		reportAsync(s.onError, err)
		return fmt.Errorf("oto player failed: %w", err)
	}
	return nil
}

func (s *otoStream) Close() error {
	if !s.gate.close() {
		return nil
	}
	if err := s.player.Close(); err != nil {
		log.Printf("Warning: oto player close error: %v", err)
	}
	return nil
}

func (s *otoStream) Format() audio.Format {
	return s.format
}

func (s *otoStream) FramesPerBuffer() int {
	return s.frames
}
