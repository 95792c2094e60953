// ABOUTME: Tempo session interface and in-process implementation
// ABOUTME: Sessions own the shared timeline and notify subscribers of changes
package link

import (
	"sync"
)

// Session is a shared tempo timeline that any number of engines can follow
type Session interface {
	// Timeline returns the current timeline in local host time
	Timeline() Timeline

	// SetTempo changes the session tempo, keeping the current beat continuous
	SetTempo(bpm float64)

	// Peers returns how many participants share the session
	Peers() int

	// Subscribe registers fn for timeline changes. fn is called once with
	// the current timeline before Subscribe returns. The returned cancel
	// func is idempotent.
	Subscribe(fn func(Timeline)) (cancel func())
}

// LocalSession is an in-process session. Peers counts subscribers.
type LocalSession struct {
	clock Clock

	mu       sync.RWMutex
	timeline Timeline

	subs Fanout
}

// NewLocalSession starts a session at bpm with beat zero at the current time
func NewLocalSession(clock Clock, bpm float64) *LocalSession {
	if clock == nil {
		clock = SystemClock{}
	}
	return &LocalSession{
		clock:    clock,
		timeline: NewTimeline(bpm, clock.Micros()),
	}
}

// Timeline returns the current timeline
func (s *LocalSession) Timeline() Timeline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline
}

// SetTempo changes tempo at the current time
func (s *LocalSession) SetTempo(bpm float64) {
	s.subs.Apply(func() (Timeline, bool) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.timeline = s.timeline.WithTempo(bpm, s.clock.Micros())
		return s.timeline, true
	})
}

// SetTimeline replaces the timeline wholesale
func (s *LocalSession) SetTimeline(tl Timeline) {
	tl.Tempo = ClampTempo(tl.Tempo)

	s.subs.Apply(func() (Timeline, bool) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.timeline = tl
		return tl, true
	})
}

// Peers returns the number of subscribers
func (s *LocalSession) Peers() int {
	return s.subs.Count()
}

// Subscribe registers fn and delivers the current timeline
func (s *LocalSession) Subscribe(fn func(Timeline)) func() {
	return s.subs.Subscribe(s.Timeline, fn)
}
