// ABOUTME: Engine configuration and defaults
// ABOUTME: Zero fields take defaults in New
package engine

import (
	"time"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio"
	"github.com/Resonate-Protocol/linkaudio/pkg/audio/output"
	"github.com/Resonate-Protocol/linkaudio/pkg/audio/source"
	"github.com/Resonate-Protocol/linkaudio/pkg/link"
)

const (
	// DefaultClickGain is the bar click level added over the source
	DefaultClickGain = 0.5

	// DefaultLatency is added to the filtered host time of each buffer
	DefaultLatency = 10 * time.Millisecond
)

// Config holds engine configuration. Zero fields take defaults.
type Config struct {
	// Device overrides Backend with a ready-made device
	Device  output.Device
	Backend string

	Format          audio.Format
	FramesPerBuffer int

	// RingFrames sizes the generator ring; raised to at least twice the
	// device's callback size
	RingFrames int

	// Latency is the output latency compensation applied to host time.
	// Zero takes DefaultLatency; a negative value means no compensation.
	Latency time.Duration

	Tempo     float64
	Quantum   float64
	// ClickGain of zero takes DefaultClickGain; negative disables the click
	ClickGain float32

	// Source feeds the ring while playing (default: tone bank)
	Source source.Source

	// Session is followed when link is enabled (default: a private LocalSession)
	Session link.Session
	Clock   link.Clock

	// AutoTune starts the generator's fill target at one device period and
	// raises it a period at a time, up to RingFrames, whenever the callback
	// underflows. The tuned target survives Restart.
	AutoTune bool

	// RestartOnDisconnect reopens the stream after a fatal device error
	RestartOnDisconnect bool

	// OnError receives fatal stream errors, off the audio thread
	OnError func(error)
}

func (c Config) withDefaults() Config {
	if c.Format.SampleRate == 0 {
		c.Format.SampleRate = audio.DefaultSampleRate
	}
	if c.Format.Channels == 0 {
		c.Format.Channels = audio.DefaultChannels
	}
	if c.FramesPerBuffer == 0 {
		c.FramesPerBuffer = audio.DefaultFramesPerBuffer
	}
	if c.RingFrames == 0 {
		c.RingFrames = 4 * c.FramesPerBuffer
	}
	switch {
	case c.Latency == 0:
		c.Latency = DefaultLatency
	case c.Latency < 0:
		c.Latency = 0
	}
	if c.Tempo == 0 {
		c.Tempo = link.DefaultTempo
	}
	if c.Quantum == 0 {
		c.Quantum = link.DefaultQuantum
	}
	if c.ClickGain == 0 {
		c.ClickGain = DefaultClickGain
	}
	if c.Clock == nil {
		c.Clock = link.SystemClock{}
	}
	if c.Source == nil {
		c.Source = source.NewTone(c.Format)
	}
	return c
}
