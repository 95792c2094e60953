// ABOUTME: Remote session membership over the session protocol
// ABOUTME: Maps the host's timeline into local host time using drift-compensated clock sync
package link

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	clocksync "github.com/Resonate-Protocol/linkaudio/internal/sync"
	"github.com/Resonate-Protocol/linkaudio/pkg/protocol"
	"github.com/google/uuid"
)

// ErrNotConnected is returned when the session host is unreachable
var ErrNotConnected = errors.New("not connected to session")

// PeerConfig configures a Peer
type PeerConfig struct {
	Addr     string
	Name     string
	ClientID string // generated when empty
	Clock    Clock

	// SyncInterval is the period between time sync rounds (default 1s)
	SyncInterval time.Duration

	DeviceInfo protocol.DeviceInfo
}

// Peer is a Session hosted elsewhere on the network
type Peer struct {
	config PeerConfig
	clock  Clock
	client *protocol.Client
	sync   *clocksync.ClockSync

	mu       sync.RWMutex
	remote   protocol.SessionTimeline
	timeline Timeline
	received bool
	peers    int

	subs Fanout

	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Join connects to a session host and starts clock sync
func Join(config PeerConfig) (*Peer, error) {
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.SyncInterval == 0 {
		config.SyncInterval = time.Second
	}

	p := &Peer{
		config:   config,
		clock:    config.Clock,
		sync:     clocksync.NewClockSync(config.Clock.Micros),
		timeline: NewTimeline(DefaultTempo, config.Clock.Micros()),
		stopChan: make(chan struct{}),
	}

	p.client = protocol.NewClient(protocol.Config{
		ServerAddr: config.Addr,
		ClientID:   config.ClientID,
		Name:       config.Name,
		DeviceInfo: config.DeviceInfo,
	})
	if err := p.client.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	p.wg.Add(2)
	go p.receiveLoop()
	go p.syncLoop()

	log.Printf("Joined session %s at %s", p.client.Hello.Name, config.Addr)
	return p, nil
}

// syncLoop sends time sync requests, fast at first and then at SyncInterval
func (p *Peer) syncLoop() {
	defer p.wg.Done()

	// Initial burst to converge quickly
	for i := 0; i < 5; i++ {
		p.sendTimeSync()
		select {
		case <-p.stopChan:
			return
		case <-p.client.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}

	ticker := time.NewTicker(p.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-p.client.Done():
			return
		case <-ticker.C:
			p.sendTimeSync()
			p.sync.CheckQuality()
		}
	}
}

func (p *Peer) sendTimeSync() {
	if err := p.client.SendTimeSync(p.clock.Micros()); err != nil {
		log.Printf("Failed to send time sync: %v", err)
	}
}

// receiveLoop applies host messages
func (p *Peer) receiveLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case <-p.client.Done():
			log.Printf("Session connection lost")
			return

		case resp := <-p.client.TimeSyncResp:
			t4 := p.clock.Micros()
			p.sync.ProcessSyncResponse(resp.ClientTransmitted, resp.ServerReceived, resp.ServerTransmitted, t4)
			p.remap()

		case tl := <-p.client.Timelines:
			p.mu.Lock()
			p.remote = tl
			p.received = true
			p.mu.Unlock()
			p.remap()

		case peers := <-p.client.Peers:
			p.mu.Lock()
			p.peers = peers.Count
			p.mu.Unlock()
		}
	}
}

// remap converts the host timeline to local time and publishes it if it moved
func (p *Peer) remap() {
	p.subs.Apply(func() (Timeline, bool) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.received {
			return Timeline{}, false
		}
		tl := Timeline{
			Tempo:      ClampTempo(p.remote.Tempo),
			BeatOrigin: p.remote.BeatOrigin,
			TimeOrigin: p.sync.ServerToLocal(p.remote.TimeOrigin),
		}
		changed := tl != p.timeline
		p.timeline = tl
		return tl, changed
	})
}

// Timeline returns the host timeline in local host time
func (p *Peer) Timeline() Timeline {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.timeline
}

// SetTempo asks the host to change tempo; the change arrives as a timeline update
func (p *Peer) SetTempo(bpm float64) {
	if err := p.client.SendTempo(ClampTempo(bpm)); err != nil {
		log.Printf("Failed to send tempo: %v", err)
	}
}

// Peers returns the host's peer count
func (p *Peer) Peers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.peers
}

// Subscribe registers fn and delivers the current timeline
func (p *Peer) Subscribe(fn func(Timeline)) func() {
	return p.subs.Subscribe(p.Timeline, fn)
}

// SyncStats returns clock sync statistics
func (p *Peer) SyncStats() clocksync.Stats {
	return p.sync.Stats()
}

// Connected reports whether the host connection is alive
func (p *Peer) Connected() bool {
	return p.client.IsConnected()
}

// SessionID returns the host's session identifier
func (p *Peer) SessionID() string {
	return p.client.Hello.SessionID
}

// Close leaves the session
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		close(p.stopChan)
		if p.client.IsConnected() {
			if err := p.client.SendGoodbye("shutdown"); err != nil {
				log.Printf("Failed to send goodbye: %v", err)
			}
		}
		p.client.Close()
		p.wg.Wait()
	})
	return nil
}

var _ Session = (*Peer)(nil)
