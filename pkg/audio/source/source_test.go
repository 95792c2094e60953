// ABOUTME: Tests for frame sources
// ABOUTME: Covers oscillator layout and silence
package source

import (
	"math"
	"testing"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio"
	"github.com/stretchr/testify/assert"
)

func TestToneFrequencies(t *testing.T) {
	format := audio.Format{SampleRate: 48000, Channels: 3}
	tone := NewTone(format)

	assert.InDelta(t, 440.0, tone.Frequency(0, format.SampleRate), 1e-9)
	assert.InDelta(t, 550.0, tone.Frequency(1, format.SampleRate), 1e-9)
	assert.InDelta(t, 660.0, tone.Frequency(2, format.SampleRate), 1e-9)
}

func TestToneAmplitudeBounded(t *testing.T) {
	format := audio.DefaultFormat()
	tone := NewTone(format)

	out := make([]float32, format.Samples(4800))
	tone.Read(out)

	peak := float32(0)
	for _, s := range out {
		assert.False(t, math.IsNaN(float64(s)))
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	assert.LessOrEqual(t, peak, float32(Amplitude))
	assert.Greater(t, peak, float32(Amplitude*0.99))
}

func TestToneIsContinuousAcrossReads(t *testing.T) {
	format := audio.Format{SampleRate: 48000, Channels: 1}

	whole := make([]float32, 200)
	NewTone(format).Read(whole)

	split := NewTone(format)
	first := make([]float32, 73)
	second := make([]float32, 127)
	split.Read(first)
	split.Read(second)

	assert.InDeltaSlice(t, whole, append(first, second...), 1e-6)
}

func TestSilence(t *testing.T) {
	out := []float32{1, 2, 3}
	Silence{}.Read(out)
	assert.Equal(t, []float32{0, 0, 0}, out)
}
