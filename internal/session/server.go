// ABOUTME: Link session host
// ABOUTME: Owns the canonical timeline, answers time sync and broadcasts changes to peers
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/linkaudio/internal/discovery"
	"github.com/Resonate-Protocol/linkaudio/pkg/link"
	"github.com/Resonate-Protocol/linkaudio/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	Tempo      float64
	EnableMDNS bool
	Debug      bool

	// Clock is the session's time base (default link.SystemClock)
	Clock link.Clock
}

// Server hosts a tempo session. It also implements link.Session so an
// engine in the same process can follow it directly.
type Server struct {
	config    Config
	serverID  string
	sessionID string
	clock     link.Clock

	// WebSocket upgrader
	upgrader websocket.Upgrader

	// HTTP server
	httpServer *http.Server
	mux        *http.ServeMux

	// Client management
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// Canonical timeline in server clock micros
	timeline   link.Timeline
	timelineMu sync.RWMutex

	// In-process subscribers
	subs link.Fanout

	// mDNS discovery
	mdnsManager *discovery.Manager

	// Control
	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client represents a connected peer
type Client struct {
	ID         string
	Name       string
	Conn       *websocket.Conn
	DeviceInfo *protocol.DeviceInfo

	// Output channel for messages
	sendChan chan interface{}
}

// New creates a new server instance
func New(config Config) *Server {
	if config.Port == 0 {
		config.Port = protocol.DefaultPort
	}
	if config.Name == "" {
		config.Name = "linkaudio"
	}
	if config.Tempo == 0 {
		config.Tempo = link.DefaultTempo
	}
	if config.Clock == nil {
		config.Clock = link.SystemClock{}
	}

	s := &Server{
		config:    config,
		serverID:  uuid.New().String(),
		sessionID: uuid.New().String(),
		clock:     config.Clock,
		mux:       http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Sessions are meant for trusted local networks
				return true
			},
		},
		clients:  make(map[string]*Client),
		timeline: link.NewTimeline(config.Tempo, config.Clock.Micros()),
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)
	return s
}

// Handler exposes the websocket endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Stop is called or the listener fails
func (s *Server) Start() error {
	log.Printf("Session host starting: %s (ID: %s, session: %s)", s.config.Name, s.serverID, s.sessionID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			SessionID:   s.sessionID,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	log.Printf("Session host listening on %s", addr)

	s.httpServer = &http.Server{Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Session host shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Session host stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// shutdown rejects new peers and disconnects existing ones
func (s *Server) shutdown() {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	s.clientsMu.RLock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
	s.clientsMu.RUnlock()
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Close disconnects peers without a running listener (for Handler users)
func (s *Server) Close() {
	s.Stop()
	s.shutdown()
	s.wg.Wait()
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	if s.config.Debug {
		log.Printf("[DEBUG] New WebSocket connection from %s", r.RemoteAddr)
	}

	s.handleConnection(conn)
}

// handleConnection manages a peer connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	// Wait for client/hello
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}
	if msg.Type != protocol.TypeClientHello {
		log.Printf("Expected client/hello, got %s", msg.Type)
		return
	}

	var hello protocol.ClientHello
	if err := protocol.DecodePayload(msg.Payload, &hello); err != nil {
		log.Printf("Error decoding client hello: %v", err)
		return
	}
	if hello.ClientID == "" || hello.Name == "" {
		log.Printf("Client hello missing ClientID or Name")
		return
	}

	log.Printf("Peer hello: %s (ID: %s)", hello.Name, hello.ClientID)

	client := &Client{
		ID:         hello.ClientID,
		Name:       hello.Name,
		Conn:       conn,
		DeviceInfo: hello.DeviceInfo,
		sendChan:   make(chan interface{}, 100),
	}

	// Check for duplicate client ID and register atomically
	s.clientsMu.Lock()
	if existing, exists := s.clients[hello.ClientID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected (name: %s), rejecting duplicate", hello.ClientID, existing.Name)

		conn.WriteJSON(protocol.Message{
			Type: protocol.TypeServerError,
			Payload: protocol.ServerError{
				Error:   "duplicate_client_id",
				Message: "Client ID already connected",
			},
		})
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	writerDone := make(chan struct{})
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		close(client.sendChan)
		<-writerDone
		log.Printf("Peer disconnected: %s", client.Name)
		s.broadcastPeers()
	}()

	// Start writer goroutine
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(writerDone)
		s.clientWriter(client)
	}()

	s.sendMessage(client, protocol.TypeServerHello, protocol.ServerHello{
		ServerID:  s.serverID,
		SessionID: s.sessionID,
		Name:      s.config.Name,
		Version:   protocol.ProtocolVersion,
	})
	s.sendMessage(client, protocol.TypeSessionTimeline, toWire(s.Timeline()))
	s.broadcastPeers()

	// Read messages from peer
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		if !s.handleClientMessage(client, data) {
			return
		}
	}
}

// clientWriter sends queued messages to the peer
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("Error marshaling message: %v", err)
				continue
			}
			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing text message: %v", err)
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

// handleClientMessage processes one peer message; false ends the connection
func (s *Server) handleClientMessage(client *Client, data []byte) bool {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return true
	}

	switch msg.Type {
	case protocol.TypeClientTime:
		s.handleTimeSync(client, msg.Payload)
	case protocol.TypeSessionTempo:
		var req protocol.SessionTempo
		if err := protocol.DecodePayload(msg.Payload, &req); err != nil {
			log.Printf("Error decoding tempo request: %v", err)
			return true
		}
		log.Printf("Peer %s set tempo %.2f", client.Name, req.Tempo)
		s.SetTempo(req.Tempo)
	case protocol.TypeClientGoodbye:
		var bye protocol.ClientGoodbye
		protocol.DecodePayload(msg.Payload, &bye)
		log.Printf("Peer %s leaving: %s", client.Name, bye.Reason)
		return false
	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
	return true
}

// handleTimeSync responds to time synchronization requests
func (s *Server) handleTimeSync(client *Client, payload interface{}) {
	// Capture receive time as early as possible
	serverRecv := s.clock.Micros()

	var clientTime protocol.ClientTime
	if err := protocol.DecodePayload(payload, &clientTime); err != nil {
		log.Printf("Error decoding client time: %v", err)
		return
	}

	serverSend := s.clock.Micros()

	if s.config.Debug {
		log.Printf("[DEBUG] Time sync for %s: t1=%d, t2=%d, t3=%d",
			client.Name, clientTime.ClientTransmitted, serverRecv, serverSend)
	}

	s.sendMessage(client, protocol.TypeServerTime, protocol.ServerTime{
		ClientTransmitted: clientTime.ClientTransmitted,
		ServerReceived:    serverRecv,
		ServerTransmitted: serverSend,
	})
}

// sendMessage queues a JSON message for a peer
func (s *Server) sendMessage(client *Client, msgType string, payload interface{}) {
	msg := protocol.Message{Type: msgType, Payload: payload}

	select {
	case client.sendChan <- msg:
	default:
		log.Printf("Send buffer full for %s, dropping %s", client.Name, msgType)
	}
}

// broadcast queues a message for every peer
func (s *Server) broadcast(msgType string, payload interface{}) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		s.sendMessage(c, msgType, payload)
	}
}

func (s *Server) broadcastPeers() {
	s.broadcast(protocol.TypeSessionPeers, protocol.SessionPeers{Count: s.Peers()})
}

func toWire(tl link.Timeline) protocol.SessionTimeline {
	return protocol.SessionTimeline{
		Tempo:      tl.Tempo,
		BeatOrigin: tl.BeatOrigin,
		TimeOrigin: tl.TimeOrigin,
	}
}

// Timeline returns the session timeline in server clock micros
func (s *Server) Timeline() link.Timeline {
	s.timelineMu.RLock()
	defer s.timelineMu.RUnlock()
	return s.timeline
}

// SetTempo changes tempo now and notifies every participant
func (s *Server) SetTempo(bpm float64) {
	s.subs.Apply(func() (link.Timeline, bool) {
		s.timelineMu.Lock()
		s.timeline = s.timeline.WithTempo(bpm, s.clock.Micros())
		tl := s.timeline
		s.timelineMu.Unlock()

		// queued under the fan-out lock so peers see tempo changes in order
		s.broadcast(protocol.TypeSessionTimeline, toWire(tl))
		return tl, true
	})
}

// Peers counts connected peers plus in-process subscribers
func (s *Server) Peers() int {
	s.clientsMu.RLock()
	n := len(s.clients)
	s.clientsMu.RUnlock()

	return n + s.subs.Count()
}

// Subscribe follows the session from the host's own process
func (s *Server) Subscribe(fn func(link.Timeline)) func() {
	cancel := s.subs.Subscribe(s.Timeline, fn)
	s.broadcastPeers()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			s.broadcastPeers()
		})
	}
}

// SessionID identifies this session instance
func (s *Server) SessionID() string {
	return s.sessionID
}

var _ link.Session = (*Server)(nil)
