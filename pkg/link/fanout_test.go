// ABOUTME: Tests for the timeline fan-out
// ABOUTME: Covers ordering of initial delivery against concurrent updates
package link

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanoutApplySkipsUnchanged(t *testing.T) {
	var f Fanout
	var got []Timeline
	cancel := f.Subscribe(func() Timeline { return Timeline{Tempo: 100} }, func(tl Timeline) {
		got = append(got, tl)
	})
	defer cancel()

	f.Apply(func() (Timeline, bool) { return Timeline{Tempo: 110}, false })
	f.Apply(func() (Timeline, bool) { return Timeline{Tempo: 120}, true })

	require.Len(t, got, 2)
	assert.Equal(t, 100.0, got[0].Tempo)
	assert.Equal(t, 120.0, got[1].Tempo)
	assert.Equal(t, 1, f.Count())

	cancel()
	cancel()
	assert.Equal(t, 0, f.Count())
}

func TestSubscribersNeverSeeOlderTimeline(t *testing.T) {
	s := NewLocalSession(NewManualClock(0), MinTempo)

	const updates = 500
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= updates; i++ {
			s.SetTempo(MinTempo + float64(i))
		}
	}()

	// Tempo only rises, so every subscriber must see a non-decreasing sequence
	for i := 0; i < 200; i++ {
		var last float64
		var mu sync.Mutex
		cancel := s.Subscribe(func(tl Timeline) {
			mu.Lock()
			defer mu.Unlock()
			assert.GreaterOrEqual(t, tl.Tempo, last, "subscriber went back in time")
			last = tl.Tempo
		})
		cancel()
	}
	wg.Wait()

	var final Timeline
	cancel := s.Subscribe(func(tl Timeline) { final = tl })
	defer cancel()
	assert.Equal(t, MinTempo+updates, final.Tempo)
}
