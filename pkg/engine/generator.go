// ABOUTME: Producer goroutine feeding the ring buffer from the frame source
// ABOUTME: Optionally raises its fill target one period at a time when the callback underflows
package engine

import (
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio/ring"
	"github.com/Resonate-Protocol/linkaudio/pkg/audio/source"
)

// generator is the ring's single producer. It tops the ring up from the
// source while playing, up to target frames.
type generator struct {
	src      source.Source
	ring     *ring.Buffer
	playing  *atomic.Bool
	chunk    []float32
	interval time.Duration

	target    atomic.Int64
	autoTune  bool
	lastUnder uint64

	wake     chan struct{}
	stopChan chan struct{}
	done     chan struct{}
}

func newGenerator(src source.Source, rb *ring.Buffer, playing *atomic.Bool, chunkFrames int, interval time.Duration) *generator {
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	g := &generator{
		src:      src,
		ring:     rb,
		playing:  playing,
		chunk:    make([]float32, chunkFrames*rb.Channels()),
		interval: interval,
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	g.target.Store(int64(rb.Capacity()))
	return g
}

// enableTuning starts the fill target at startFrames (at least one chunk)
// and lets it grow toward the ring capacity on underflow. Call before start.
func (g *generator) enableTuning(startFrames int) {
	chunkFrames := g.chunkFrames()
	startFrames = max(startFrames, chunkFrames)
	startFrames = min(startFrames, g.ring.Capacity())

	g.autoTune = true
	g.lastUnder = g.ring.Underflows()
	g.target.Store(int64(startFrames))
}

// targetFrames returns the current fill target
func (g *generator) targetFrames() int {
	return int(g.target.Load())
}

func (g *generator) chunkFrames() int {
	return len(g.chunk) / g.ring.Channels()
}

func (g *generator) start() {
	go g.run()
}

func (g *generator) run() {
	defer close(g.done)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		g.fill()
		select {
		case <-g.stopChan:
			return
		case <-g.wake:
		case <-ticker.C:
		}
	}
}

// tune raises the target by one chunk if the callback underflowed since
// the last call
func (g *generator) tune() {
	if !g.autoTune {
		return
	}
	under := g.ring.Underflows()
	if under == g.lastUnder {
		return
	}
	g.lastUnder = under

	target := g.targetFrames()
	if next := min(target+g.chunkFrames(), g.ring.Capacity()); next > target {
		g.target.Store(int64(next))
	}
}

// fill writes whole chunks until the ring holds the target
func (g *generator) fill() {
	if !g.playing.Load() {
		return
	}
	g.tune()

	chunkFrames := g.chunkFrames()
	target := g.targetFrames()
	for g.ring.Available()+chunkFrames <= target {
		g.src.Read(g.chunk)
		g.ring.Write(g.chunk)
	}
}

// poke makes the generator fill now instead of at the next tick
func (g *generator) poke() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// stop waits for the goroutine to exit
func (g *generator) stop() {
	close(g.stopChan)
	<-g.done
}
