// ABOUTME: Frame sources feeding the engine's ring buffer
// ABOUTME: Sine oscillator bank and silence generators
package source

import (
	"math"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio"
)

// Source renders interleaved frames on demand.
// Read is called from the engine's generator goroutine, never from the
// realtime callback, and must fill all of out.
type Source interface {
	Read(out []float32)
}

const (
	// Oscillator bank layout: channel n plays BaseFrequency + n*FrequencyStep
	BaseFrequency = 440.0
	FrequencyStep = 110.0
	Amplitude     = 0.4
)

// Tone renders one sine oscillator per channel
type Tone struct {
	channels int
	phase    [audio.MaxChannels]float64
	incr     [audio.MaxChannels]float64
	amp      float32
}

// NewTone creates the default oscillator bank for a format
func NewTone(format audio.Format) *Tone {
	t := &Tone{
		channels: format.Channels,
		amp:      Amplitude,
	}

	freq := BaseFrequency
	for ch := 0; ch < format.Channels && ch < audio.MaxChannels; ch++ {
		t.incr[ch] = 2 * math.Pi * freq / float64(format.SampleRate)
		freq += FrequencyStep
	}
	return t
}

// Read renders the next frames
func (t *Tone) Read(out []float32) {
	for i := range out {
		ch := i % t.channels
		out[i] = t.amp * float32(math.Sin(t.phase[ch]))
		t.phase[ch] += t.incr[ch]
		if t.phase[ch] >= 2*math.Pi {
			t.phase[ch] -= 2 * math.Pi
		}
	}
}

// Frequency reports the oscillator frequency for a channel
func (t *Tone) Frequency(ch, sampleRate int) float64 {
	return t.incr[ch] * float64(sampleRate) / (2 * math.Pi)
}

// Silence renders zeros
type Silence struct{}

// Read zero-fills out
func (Silence) Read(out []float32) {
	clear(out)
}
