// ABOUTME: Realtime render callback
// ABOUTME: Pulls ring frames, follows the link position and adds the bar click
package engine

import (
	"math"
	"sync/atomic"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio"
	"github.com/Resonate-Protocol/linkaudio/pkg/audio/ring"
	"github.com/Resonate-Protocol/linkaudio/pkg/link"
)

const (
	// Bar click voice
	clickFrequency = 1567.98 // G6
	clickDuration  = 0.1     // seconds
)

// renderer is the realtime callback of one stream. Everything it touches is
// either owned by it or read through atomics.
type renderer struct {
	format  audio.Format
	ring    *ring.Buffer
	ctrl    *link.Controller
	filter  *link.HostTimeFilter
	playing *atomic.Bool
	latency int64
	quantum float64

	sampleTime float64
	lastBar    float64 // highest bar index reached, NaN before the first frame

	clickGain  float32
	clickIncr  float64
	clickPhase float64
	clickLen   int
	clickPos   int

	callbacks *atomic.Uint64
	frames    *atomic.Uint64
}

func newRenderer(e *Engine, format audio.Format, rb *ring.Buffer) *renderer {
	gain := e.config.ClickGain
	if gain < 0 {
		gain = 0
	}
	clickLen := int(clickDuration * float64(format.SampleRate))

	return &renderer{
		format:    format,
		ring:      rb,
		ctrl:      e.link,
		filter:    link.NewHostTimeFilter(e.config.Clock, 0),
		playing:   &e.playing,
		latency:   e.config.Latency.Microseconds(),
		quantum:   e.link.Quantum(),
		lastBar:   math.NaN(),
		clickGain: gain,
		clickIncr: 2 * math.Pi * clickFrequency / float64(format.SampleRate),
		clickLen:  clickLen,
		clickPos:  clickLen,
		callbacks: &e.callbacks,
		frames:    &e.frames,
	}
}

// render fills one device buffer
func (r *renderer) render(out []float32) {
	clear(out)

	frames := r.format.Frames(len(out))
	hostTime := r.filter.SampleTimeToHostTime(r.sampleTime) + r.latency
	r.sampleTime += float64(frames)

	span := r.ctrl.Advance(hostTime, frames, r.format.SampleRate)

	if r.playing.Load() {
		r.ring.Read(out[:r.format.Samples(frames)])
		r.renderClick(out, frames, span)
		for i := range out {
			out[i] = audio.Clamp(out[i])
		}
	} else {
		r.lastBar = math.Floor(span.End(frames) / r.quantum)
		r.clickPos = r.clickLen
	}

	r.callbacks.Add(1)
	r.frames.Add(uint64(frames))
}

// renderClick adds a decaying tone when the position enters a new bar.
// A bar already clicked does not click again if link slews back over it.
func (r *renderer) renderClick(out []float32, frames int, span link.Span) {
	ch := r.format.Channels

	for i := 0; i < frames; i++ {
		bar := math.Floor(span.BeatAt(i) / r.quantum)
		switch {
		case math.IsNaN(r.lastBar):
			r.lastBar = bar
		case bar > r.lastBar:
			r.lastBar = bar
			r.clickPos = 0
			r.clickPhase = 0
		}

		if r.clickPos >= r.clickLen {
			continue
		}

		env := 1 - float64(r.clickPos)/float64(r.clickLen)
		s := r.clickGain * float32(env*math.Sin(r.clickPhase))
		for c := 0; c < ch; c++ {
			out[i*ch+c] += s
		}

		r.clickPhase += r.clickIncr
		r.clickPos++
	}
}
