// ABOUTME: Session timeline math
// ABOUTME: Maps host time in microseconds to beats at a given tempo
package link

import (
	"fmt"
	"math"
)

const (
	// Tempo bounds accepted by sessions
	MinTempo = 20.0
	MaxTempo = 999.0

	// DefaultTempo is the tempo new sessions start at
	DefaultTempo = 240.0

	// DefaultQuantum is the phase period in beats (one bar of 4/4)
	DefaultQuantum = 4.0
)

// Timeline anchors beat BeatOrigin at host time TimeOrigin (microseconds)
// and advances at Tempo beats per minute. Values are immutable; changes
// produce a new Timeline.
type Timeline struct {
	Tempo      float64 `json:"tempo"`
	BeatOrigin float64 `json:"beat_origin"`
	TimeOrigin int64   `json:"time_origin"`
}

// NewTimeline starts a timeline at beat zero at the given time
func NewTimeline(tempo float64, at int64) Timeline {
	return Timeline{Tempo: ClampTempo(tempo), TimeOrigin: at}
}

// MicrosPerBeat returns the beat period
func (t Timeline) MicrosPerBeat() float64 {
	return 60e6 / t.Tempo
}

// BeatAtTime returns the beat value at a host time
func (t Timeline) BeatAtTime(micros int64) float64 {
	return t.BeatOrigin + float64(micros-t.TimeOrigin)/t.MicrosPerBeat()
}

// TimeAtBeat returns the host time at which a beat occurs
func (t Timeline) TimeAtBeat(beat float64) int64 {
	return t.TimeOrigin + int64(math.Round((beat-t.BeatOrigin)*t.MicrosPerBeat()))
}

// PhaseAtTime returns the position within the quantum at a host time
func (t Timeline) PhaseAtTime(micros int64, quantum float64) float64 {
	return Phase(t.BeatAtTime(micros), quantum)
}

// WithTempo changes tempo keeping the beat at time at continuous
func (t Timeline) WithTempo(bpm float64, at int64) Timeline {
	return Timeline{
		Tempo:      ClampTempo(bpm),
		BeatOrigin: t.BeatAtTime(at),
		TimeOrigin: at,
	}
}

// Shift moves the timeline into another clock domain, where
// local = remote + offset
func (t Timeline) Shift(offset int64) Timeline {
	t.TimeOrigin += offset
	return t
}

func (t Timeline) String() string {
	return fmt.Sprintf("%.2f BPM (beat %.3f @ %dµs)", t.Tempo, t.BeatOrigin, t.TimeOrigin)
}

// Phase wraps a beat into [0, quantum)
func Phase(beat, quantum float64) float64 {
	if quantum <= 0 {
		return 0
	}
	p := math.Mod(beat, quantum)
	if p < 0 {
		p += quantum
	}
	return p
}

// ClampTempo limits bpm to [MinTempo, MaxTempo]
func ClampTempo(bpm float64) float64 {
	if math.IsNaN(bpm) || bpm < MinTempo {
		return MinTempo
	}
	if bpm > MaxTempo {
		return MaxTempo
	}
	return bpm
}
