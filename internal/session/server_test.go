// ABOUTME: Tests for the session host
// ABOUTME: Drives the websocket endpoint with protocol clients
package session

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/linkaudio/pkg/link"
	"github.com/Resonate-Protocol/linkaudio/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHost(t *testing.T, clock link.Clock) (*Server, string) {
	t.Helper()
	s := New(Config{Name: "Test Session", Tempo: 120, Clock: clock})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		srv.Close()
	})
	return s, strings.TrimPrefix(srv.URL, "http://")
}

func connect(t *testing.T, addr, id string) *protocol.Client {
	t.Helper()
	c := protocol.NewClient(protocol.Config{ServerAddr: addr, ClientID: id, Name: "peer " + id})
	require.NoError(t, c.Connect())
	t.Cleanup(c.Close)
	return c
}

func nextTimeline(t *testing.T, c *protocol.Client) protocol.SessionTimeline {
	t.Helper()
	select {
	case tl := <-c.Timelines:
		return tl
	case <-time.After(2 * time.Second):
		t.Fatal("no timeline received")
		return protocol.SessionTimeline{}
	}
}

func TestHelloAndInitialTimeline(t *testing.T) {
	clock := link.NewManualClock(5000)
	s, addr := startHost(t, clock)

	c := connect(t, addr, "a")
	assert.Equal(t, s.SessionID(), c.Hello.SessionID)
	assert.Equal(t, "Test Session", c.Hello.Name)

	tl := nextTimeline(t, c)
	assert.Equal(t, 120.0, tl.Tempo)
	assert.Equal(t, int64(5000), tl.TimeOrigin)
	assert.Equal(t, 0.0, tl.BeatOrigin)
}

func TestTempoRequestBroadcast(t *testing.T) {
	clock := link.NewManualClock(0)
	s, addr := startHost(t, clock)

	a := connect(t, addr, "a")
	b := connect(t, addr, "b")
	nextTimeline(t, a)
	nextTimeline(t, b)

	clock.Set(1000000) // one second = 2 beats at 120
	require.NoError(t, a.SendTempo(60))

	for _, c := range []*protocol.Client{a, b} {
		tl := nextTimeline(t, c)
		assert.Equal(t, 60.0, tl.Tempo)
		assert.InDelta(t, 2.0, tl.BeatOrigin, 1e-9)
		assert.Equal(t, int64(1000000), tl.TimeOrigin)
	}
	assert.Equal(t, 60.0, s.Timeline().Tempo)
}

func TestTimeSyncEcho(t *testing.T) {
	clock := link.NewManualClock(42)
	_, addr := startHost(t, clock)
	c := connect(t, addr, "a")

	require.NoError(t, c.SendTimeSync(9999))
	select {
	case st := <-c.TimeSyncResp:
		assert.Equal(t, int64(9999), st.ClientTransmitted)
		assert.Equal(t, int64(42), st.ServerReceived)
		assert.Equal(t, int64(42), st.ServerTransmitted)
	case <-time.After(2 * time.Second):
		t.Fatal("no time response")
	}
}

func TestPeerCount(t *testing.T) {
	s, addr := startHost(t, link.NewManualClock(0))

	a := connect(t, addr, "a")
	connect(t, addr, "b")

	require.Eventually(t, func() bool { return s.Peers() == 2 }, 2*time.Second, 10*time.Millisecond)

	// a sees the count rise to two
	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-a.Peers:
			if p.Count == 2 {
				return
			}
		case <-deadline:
			t.Fatal("peer count never reached 2")
		}
	}
}

func TestDuplicateClientRejected(t *testing.T) {
	_, addr := startHost(t, link.NewManualClock(0))
	connect(t, addr, "same")

	dup := protocol.NewClient(protocol.Config{ServerAddr: addr, ClientID: "same", Name: "dup"})
	err := dup.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate_client_id")
}

func TestInProcessSubscriber(t *testing.T) {
	clock := link.NewManualClock(0)
	s, _ := startHost(t, clock)

	var got []link.Timeline
	cancel := s.Subscribe(func(tl link.Timeline) { got = append(got, tl) })
	require.Len(t, got, 1)
	assert.Equal(t, 1, s.Peers())

	s.SetTempo(90)
	require.Len(t, got, 2)
	assert.Equal(t, 90.0, got[1].Tempo)

	cancel()
	cancel()
	s.SetTempo(100)
	assert.Len(t, got, 2)
	assert.Equal(t, 0, s.Peers())
}

func TestDefaults(t *testing.T) {
	s := New(Config{})
	assert.Equal(t, protocol.DefaultPort, s.config.Port)
	assert.Equal(t, link.DefaultTempo, s.Timeline().Tempo)
	assert.NotEmpty(t, s.SessionID())
}
