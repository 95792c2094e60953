// ABOUTME: Tests for timeline math
// ABOUTME: Covers beat/time conversion, phase and tempo changes
package link

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimelineBeatAtTime(t *testing.T) {
	tl := NewTimeline(120, 1000000)

	assert.Equal(t, 0.0, tl.BeatAtTime(1000000))
	assert.InDelta(t, 2.0, tl.BeatAtTime(2000000), 1e-12)
	assert.InDelta(t, -1.0, tl.BeatAtTime(500000), 1e-12)
	assert.Equal(t, int64(1500000), tl.TimeAtBeat(1))
}

func TestTimelinePhase(t *testing.T) {
	tl := NewTimeline(60, 0)

	tests := []struct {
		micros int64
		phase  float64
	}{
		{0, 0},
		{1000000, 1},
		{4000000, 0},
		{5500000, 1.5},
		{-1000000, 3},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.phase, tl.PhaseAtTime(tt.micros, 4), 1e-9, "t=%d", tt.micros)
	}
}

func TestTimelineWithTempoKeepsBeatContinuous(t *testing.T) {
	tl := NewTimeline(120, 0)
	at := int64(3000000) // beat 6

	changed := tl.WithTempo(60, at)
	assert.InDelta(t, tl.BeatAtTime(at), changed.BeatAtTime(at), 1e-12)
	assert.InDelta(t, 7.0, changed.BeatAtTime(at+1000000), 1e-12)
}

func TestTimelineShift(t *testing.T) {
	tl := NewTimeline(120, 1000)
	shifted := tl.Shift(-400)
	assert.Equal(t, int64(600), shifted.TimeOrigin)
	assert.Equal(t, tl.BeatAtTime(1000), shifted.BeatAtTime(600))
}

func TestClampTempo(t *testing.T) {
	assert.Equal(t, MinTempo, ClampTempo(1))
	assert.Equal(t, MaxTempo, ClampTempo(5000))
	assert.Equal(t, MinTempo, ClampTempo(math.NaN()))
	assert.Equal(t, 128.0, ClampTempo(128))
}

func TestPhaseZeroQuantum(t *testing.T) {
	assert.Equal(t, 0.0, Phase(3.5, 0))
}
