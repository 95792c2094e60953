// ABOUTME: Tests for the link position controller
// ABOUTME: Checks continuity while toggling and convergence on the session phase
package link

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRate   = 48000
	testFrames = 480 // 10ms
)

// callbackRunner drives a controller like an audio callback would
type callbackRunner struct {
	t     *testing.T
	clock *ManualClock
	ctrl  *Controller
	prev  *Span
}

// step renders one buffer and checks the start did not jump more than one
// callback period from where the previous buffer ended
func (r *callbackRunner) step() Span {
	r.t.Helper()
	span := r.ctrl.Advance(r.clock.Micros(), testFrames, testRate)
	if r.prev != nil {
		expected := r.prev.End(testFrames)
		period := float64(testFrames) * span.BeatsPerSample
		assert.LessOrEqual(r.t, math.Abs(span.Start-expected), period+1e-9,
			"jump of %.4f beats exceeds one callback period (%.4f)", span.Start-expected, period)
	}
	r.prev = &span
	r.clock.AdvanceMicros(10000)
	return span
}

func newRunner(t *testing.T, tempo float64) (*callbackRunner, *LocalSession) {
	clock := NewManualClock(0)
	session := NewLocalSession(clock, tempo)
	return &callbackRunner{t: t, clock: clock, ctrl: NewController(session, 4)}, session
}

func TestControllerLocalCounting(t *testing.T) {
	r, _ := newRunner(t, 120)

	first := r.step()
	assert.Equal(t, 0.0, first.Start)
	assert.False(t, first.Linked)
	assert.InDelta(t, 120.0/60/testRate, first.BeatsPerSample, 1e-15)

	for i := 0; i < 99; i++ {
		r.step()
	}
	// 100 callbacks of 10ms at 120 BPM = 2 beats
	assert.InDelta(t, 2.0, r.prev.End(testFrames), 1e-9)
	assert.InDelta(t, r.prev.Start, r.ctrl.Position(), 1e-12)
}

func TestControllerEnableBeforeFirstCallbackStartsOnSession(t *testing.T) {
	r, session := newRunner(t, 120)
	session.SetTimeline(Timeline{Tempo: 120, BeatOrigin: 7.25, TimeOrigin: 0})

	r.ctrl.SetEnabled(true)
	span := r.step()
	assert.True(t, span.Linked)
	assert.Equal(t, 7.25, span.Start)
}

func TestControllerLinkToggleWhilePlayingIsContinuous(t *testing.T) {
	r, session := newRunner(t, 120)

	for i := 0; i < 50; i++ {
		r.step()
	}

	// Session sits 1.3 beats away from local position
	session.SetTimeline(Timeline{Tempo: 120, BeatOrigin: 1.3, TimeOrigin: 0})
	r.ctrl.SetEnabled(true)
	assert.True(t, r.ctrl.Enabled())

	var span Span
	for i := 0; i < 200; i++ {
		span = r.step()
	}

	// Converged to the session phase
	host := r.clock.Micros() - 10000
	assert.True(t, span.Linked)
	assert.InDelta(t, session.Timeline().PhaseAtTime(host, 4), Phase(span.Start, 4), 1e-6)
	assert.InDelta(t, r.ctrl.Phase(), Phase(span.Start, 4), 1e-12)

	r.ctrl.SetEnabled(false)
	for i := 0; i < 50; i++ {
		span = r.step()
		assert.False(t, span.Linked)
	}
}

func TestControllerBackwardCorrectionKeepsStartsIncreasing(t *testing.T) {
	r, session := newRunner(t, 120)
	for i := 0; i < 50; i++ {
		r.step()
	}

	// Session sits just under a beat behind local position
	session.SetTimeline(Timeline{Tempo: 120, BeatOrigin: -0.9, TimeOrigin: 0})
	r.ctrl.SetEnabled(true)

	prev := r.prev.Start
	var span Span
	for i := 0; i < 150; i++ {
		span = r.step()
		require.Greater(t, span.Start, prev, "buffer %d started at or before the previous one", i)
		prev = span.Start
	}

	host := r.clock.Micros() - 10000
	assert.InDelta(t, session.Timeline().PhaseAtTime(host, 4), Phase(span.Start, 4), 1e-6)
}

func TestControllerRepeatedTogglesStayContinuous(t *testing.T) {
	r, session := newRunner(t, 133)
	session.SetTimeline(Timeline{Tempo: 133, BeatOrigin: 2.9, TimeOrigin: 0})

	for i := 0; i < 300; i++ {
		if i%7 == 0 {
			r.ctrl.SetEnabled(!r.ctrl.Enabled())
		}
		r.step()
	}
}

func TestControllerDisableKeepsSessionTempo(t *testing.T) {
	r, session := newRunner(t, 120)
	r.ctrl.SetEnabled(true)
	r.step()

	session.SetTempo(60)
	span := r.step()
	assert.Equal(t, 60.0, span.Tempo)

	r.ctrl.SetEnabled(false)
	span = r.step()
	assert.False(t, span.Linked)
	assert.Equal(t, 60.0, span.Tempo)
	assert.InDelta(t, 60.0/60/testRate, span.BeatsPerSample, 1e-15)
	assert.Equal(t, 60.0, r.ctrl.Tempo())
}

func TestControllerSetTempo(t *testing.T) {
	r, session := newRunner(t, 120)

	r.ctrl.SetTempo(90)
	assert.Equal(t, 90.0, r.ctrl.Tempo())
	assert.Equal(t, 120.0, session.Timeline().Tempo, "unlinked tempo stays local")

	r.ctrl.SetEnabled(true)
	r.ctrl.SetTempo(150)
	assert.Equal(t, 150.0, session.Timeline().Tempo)
	assert.Equal(t, 150.0, r.ctrl.Tempo())
}

func TestControllerPeersAndClose(t *testing.T) {
	r, session := newRunner(t, 120)
	assert.Equal(t, 0, r.ctrl.Peers())

	r.ctrl.SetEnabled(true)
	r.ctrl.SetEnabled(true)
	assert.Equal(t, 1, session.Peers())
	assert.Equal(t, 1, r.ctrl.Peers())

	r.ctrl.Close()
	assert.False(t, r.ctrl.Enabled())
	assert.Equal(t, 0, session.Peers())
}

func TestControllerWithoutSession(t *testing.T) {
	ctrl := NewController(nil, 0)
	assert.Equal(t, DefaultQuantum, ctrl.Quantum())
	assert.Equal(t, DefaultTempo, ctrl.Tempo())

	ctrl.SetEnabled(true)
	assert.False(t, ctrl.Enabled())

	span := ctrl.Advance(0, testFrames, testRate)
	assert.False(t, span.Linked)
}

func TestControllerConcurrentToggle(t *testing.T) {
	clock := SystemClock{}
	session := NewLocalSession(clock, 120)
	ctrl := NewController(session, 4)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				span := ctrl.Advance(clock.Micros(), 64, testRate)
				if math.IsNaN(span.Start) {
					t.Error("NaN position")
					return
				}
			}
		}
	}()

	for i := 0; i < 200; i++ {
		ctrl.SetEnabled(i%2 == 0)
		session.SetTempo(float64(100 + i%40))
	}
	time.Sleep(5 * time.Millisecond)
	close(stop)
	wg.Wait()

	require.False(t, ctrl.Enabled())
}
