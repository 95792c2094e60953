// ABOUTME: Tests for the local session
// ABOUTME: Covers subscription delivery and peer counting
package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSessionSubscribe(t *testing.T) {
	clock := NewManualClock(0)
	s := NewLocalSession(clock, 120)

	var got []Timeline
	cancel := s.Subscribe(func(tl Timeline) { got = append(got, tl) })
	require.Len(t, got, 1, "current timeline delivered on subscribe")
	assert.Equal(t, 1, s.Peers())

	clock.Set(500000)
	s.SetTempo(60)
	require.Len(t, got, 2)
	assert.Equal(t, 60.0, got[1].Tempo)
	assert.InDelta(t, 1.0, got[1].BeatOrigin, 1e-12)

	cancel()
	cancel()
	assert.Equal(t, 0, s.Peers())

	s.SetTempo(90)
	assert.Len(t, got, 2)
	assert.Equal(t, 90.0, s.Timeline().Tempo)
}

func TestLocalSessionSetTimelineClamps(t *testing.T) {
	s := NewLocalSession(NewManualClock(0), 120)
	s.SetTimeline(Timeline{Tempo: 5000, BeatOrigin: 3, TimeOrigin: 10})

	tl := s.Timeline()
	assert.Equal(t, MaxTempo, tl.Tempo)
	assert.Equal(t, 3.0, tl.BeatOrigin)
}

func TestLocalSessionDefaultsClock(t *testing.T) {
	s := NewLocalSession(nil, DefaultTempo)
	assert.Equal(t, DefaultTempo, s.Timeline().Tempo)
}
