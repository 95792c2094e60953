// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo for low-latency callback playback
package output

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Malgo output device using the malgo/miniaudio library
type Malgo struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
}

// NewMalgo creates a new Malgo device
func NewMalgo() *Malgo {
	return &Malgo{}
}

// Name identifies the backend
func (m *Malgo) Name() string {
	return "malgo"
}

// context lazily initializes the miniaudio context (must hold m.mu)
func (m *Malgo) context() (*malgo.AllocatedContext, error) {
	if m.malgoCtx != nil {
		return m.malgoCtx, nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Printf("malgo: %s", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoCtx = ctx
	return ctx, nil
}

// Probe checks at least one playback device is present
func (m *Malgo) Probe() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, err := m.context()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return fmt.Errorf("%w: failed to enumerate playback devices: %v", ErrUnavailable, err)
	}
	if len(infos) == 0 {
		return ErrUnavailable
	}

	for _, info := range infos {
		log.Printf("Detected playback device: %s (default: %v)", info.Name(), info.IsDefault != 0)
	}
	return nil
}

// Open initializes a playback device running the callback
func (m *Malgo) Open(params StreamParams, cb Callback) (Stream, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, err := m.context()
	if err != nil {
		return nil, err
	}

	s := &malgoStream{
		format:  params.Format,
		frames:  params.FramesPerBuffer,
		onError: params.OnError,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(params.Format.Channels)
	deviceConfig.SampleRate = uint32(params.Format.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(params.FramesPerBuffer)
	deviceConfig.PerformanceProfile = malgo.LowLatency
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: s.data,
		Stop: s.stopped,
	}

	// Exclusive mode gives the lowest latency; fall back to shared when refused
	deviceConfig.Playback.ShareMode = malgo.Exclusive
	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		log.Printf("Exclusive playback refused (%v), falling back to shared mode", err)
		deviceConfig.Playback.ShareMode = malgo.Shared
		device, err = malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize playback device: %w", err)
		}
	}

	s.device = device
	s.cb = cb

	log.Printf("Audio output opened: %s, %d frames/buffer (malgo)", params.Format, params.FramesPerBuffer)
	return s, nil
}

// Close releases the miniaudio context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.malgoCtx == nil {
		return nil
	}
	if err := m.malgoCtx.Uninit(); err != nil {
		log.Printf("Warning: malgo context uninit error: %v", err)
	}
	m.malgoCtx.Free()
	m.malgoCtx = nil
	return nil
}

type malgoStream struct {
	device  *malgo.Device
	cb      Callback
	gate    gate
	format  audio.Format
	frames  int
	onError func(error)

	stopping atomic.Bool
}

// data is miniaudio's realtime callback
func (s *malgoStream) data(pOutput, _ []byte, frameCount uint32) {
	out := audio.Float32View(pOutput)
	if n := int(frameCount) * s.format.Channels; n < len(out) {
		out = out[:n]
	}
	s.gate.run(out, s.cb)
}

// stopped is called by miniaudio whenever the device stops
func (s *malgoStream) stopped() {
	if s.stopping.Load() || s.gate.isClosed() {
		return
	}
	reportAsync(s.onError, ErrDeviceStopped)
}

func (s *malgoStream) Start() error {
	if s.gate.isClosed() {
		return ErrStreamClosed
	}
	s.stopping.Store(false)
	if err := s.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

func (s *malgoStream) Close() error {
	s.stopping.Store(true)
	if !s.gate.close() {
		return nil
	}

	if err := s.device.Stop(); err != nil {
		log.Printf("Warning: device stop error: %v", err)
	}
	s.device.Uninit()
	return nil
}

func (s *malgoStream) Format() audio.Format {
	return s.format
}

func (s *malgoStream) FramesPerBuffer() int {
	return s.frames
}
