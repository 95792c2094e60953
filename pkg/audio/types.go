// ABOUTME: Audio type definitions
// ABOUTME: Defines the engine's output format and float sample helpers
package audio

import (
	"fmt"
	"time"
	"unsafe"
)

const (
	// Engine defaults, used when a config leaves a field zero
	DefaultSampleRate      = 48000
	DefaultChannels        = 2
	DefaultFramesPerBuffer = 256

	// MaxChannels bounds the per-channel oscillator bank and click renderer
	MaxChannels = 8
)

// Format describes the interleaved float32 stream the engine renders
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat returns 48kHz stereo
func DefaultFormat() Format {
	return Format{SampleRate: DefaultSampleRate, Channels: DefaultChannels}
}

// Validate checks the format is usable by a device
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels <= 0 || f.Channels > MaxChannels {
		return fmt.Errorf("invalid channel count: %d (supported: 1-%d)", f.Channels, MaxChannels)
	}
	return nil
}

// Samples returns the number of interleaved samples in n frames
func (f Format) Samples(frames int) int {
	return frames * f.Channels
}

// Frames returns the number of whole frames in n interleaved samples
func (f Format) Frames(samples int) int {
	if f.Channels == 0 {
		return 0
	}
	return samples / f.Channels
}

// Duration converts a frame count to wall time
func (f Format) Duration(frames int) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// FramesIn converts wall time to a frame count (rounded down)
func (f Format) FramesIn(d time.Duration) int {
	return int(d * time.Duration(f.SampleRate) / time.Second)
}

// MicrosPerFrame returns the frame period in microseconds
func (f Format) MicrosPerFrame() float64 {
	return 1e6 / float64(f.SampleRate)
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/f32", f.SampleRate, f.Channels)
}

// Clamp limits a sample to [-1, 1]
func Clamp(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// Float32View reinterprets a native-endian f32 byte buffer as samples without copying.
// Trailing bytes that do not form a whole sample are ignored.
func Float32View(b []byte) []float32 {
	n := len(b) / 4
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n)
}
