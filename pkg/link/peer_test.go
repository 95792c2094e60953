// ABOUTME: Tests for joining a networked session
// ABOUTME: Runs a session host in-process over httptest
package link_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/linkaudio/internal/session"
	"github.com/Resonate-Protocol/linkaudio/pkg/link"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostSession(t *testing.T, tempo float64) (*session.Server, string) {
	t.Helper()
	host := session.New(session.Config{Name: "peer-test", Tempo: tempo})
	srv := httptest.NewServer(host.Handler())
	t.Cleanup(func() {
		host.Close()
		srv.Close()
	})
	return host, strings.TrimPrefix(srv.URL, "http://")
}

func TestPeerFollowsHostTimeline(t *testing.T) {
	host, addr := hostSession(t, 128)

	peer, err := link.Join(link.PeerConfig{Addr: addr, Name: "peer", SyncInterval: 50 * time.Millisecond})
	require.NoError(t, err)
	defer peer.Close()

	require.Eventually(t, func() bool {
		return peer.Timeline().Tempo == 128 && peer.SyncStats().Samples > 0
	}, 3*time.Second, 10*time.Millisecond)

	// Same process, same clock: beats agree to within a few milliseconds
	now := link.SystemClock{}.Micros()
	assert.InDelta(t, host.Timeline().BeatAtTime(now), peer.Timeline().BeatAtTime(now), 0.05)
	assert.NotEmpty(t, peer.SessionID())
	assert.True(t, peer.Connected())
}

func TestPeerTempoChangePropagates(t *testing.T) {
	host, addr := hostSession(t, 120)

	a, err := link.Join(link.PeerConfig{Addr: addr, Name: "a"})
	require.NoError(t, err)
	defer a.Close()

	b, err := link.Join(link.PeerConfig{Addr: addr, Name: "b"})
	require.NoError(t, err)
	defer b.Close()

	updates := make(chan link.Timeline, 16)
	cancel := b.Subscribe(func(tl link.Timeline) { updates <- tl })
	defer cancel()

	a.SetTempo(174)

	require.Eventually(t, func() bool { return b.Timeline().Tempo == 174 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 174.0, host.Timeline().Tempo)
	require.Eventually(t, func() bool { return b.Peers() == 2 }, 3*time.Second, 10*time.Millisecond)

	seen := false
	for len(updates) > 0 {
		if (<-updates).Tempo == 174 {
			seen = true
		}
	}
	assert.True(t, seen, "subscriber saw the tempo change")
}

func TestPeerDrivesController(t *testing.T) {
	_, addr := hostSession(t, 120)

	peer, err := link.Join(link.PeerConfig{Addr: addr, Name: "ctrl"})
	require.NoError(t, err)
	defer peer.Close()

	require.Eventually(t, func() bool { return peer.Timeline().Tempo == 120 }, 3*time.Second, 10*time.Millisecond)

	ctrl := link.NewController(peer, 4)
	ctrl.SetEnabled(true)
	defer ctrl.Close()

	span := ctrl.Advance(link.SystemClock{}.Micros(), 256, 48000)
	assert.True(t, span.Linked)
	assert.Equal(t, 120.0, span.Tempo)
}

func TestJoinUnreachable(t *testing.T) {
	_, err := link.Join(link.PeerConfig{Addr: "127.0.0.1:1"})
	assert.ErrorIs(t, err, link.ErrNotConnected)
}
