// ABOUTME: WebSocket client for link session communication
// ABOUTME: Handles connection, handshake, and message routing
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned when sending on a closed client
var ErrNotConnected = errors.New("not connected")

// Config holds client configuration
type Config struct {
	ServerAddr string
	ClientID   string
	Name       string
	Version    int
	DeviceInfo DeviceInfo

	// HandshakeTimeout bounds the wait for server/hello (default 5s)
	HandshakeTimeout time.Duration
}

// Client represents a WebSocket client
type Client struct {
	config  Config
	conn    *websocket.Conn
	mu      sync.RWMutex
	writeMu sync.Mutex

	// Message channels
	TimeSyncResp chan ServerTime
	Timelines    chan SessionTimeline
	Peers        chan SessionPeers

	// Hello received during the handshake
	Hello ServerHello

	// State
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Version == 0 {
		config.Version = ProtocolVersion
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:       config,
		TimeSyncResp: make(chan ServerTime, 10),
		Timelines:    make(chan SessionTimeline, 10),
		Peers:        make(chan SessionPeers, 10),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Connect establishes WebSocket connection and performs handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	// Start message reader
	go c.readMessages()

	return nil
}

// handshake performs the protocol handshake
func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID:   c.config.ClientID,
		Name:       c.config.Name,
		Version:    c.config.Version,
		DeviceInfo: &c.config.DeviceInfo,
	}

	if err := c.send(TypeClientHello, hello); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	// Wait for server/hello (with timeout)
	c.conn.SetReadDeadline(time.Now().Add(c.config.HandshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{}) // Clear deadline

	var serverMsg Message
	if err := json.Unmarshal(data, &serverMsg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch serverMsg.Type {
	case TypeServerHello:
	case TypeServerError:
		var se ServerError
		if err := DecodePayload(serverMsg.Payload, &se); err != nil {
			return err
		}
		return fmt.Errorf("server rejected hello: %s (%s)", se.Message, se.Error)
	default:
		return fmt.Errorf("expected server/hello, got %s", serverMsg.Type)
	}

	if err := DecodePayload(serverMsg.Payload, &c.Hello); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	log.Printf("Handshake complete with session %s (%s)", c.Hello.Name, c.Hello.SessionID)
	return nil
}

// send writes one JSON message
func (c *Client) send(msgType string, payload interface{}) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(Message{Type: msgType, Payload: payload})
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.IsConnected() {
				log.Printf("Read error: %v", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			log.Printf("Unexpected WebSocket message type: %d", messageType)
			continue
		}
		c.handleJSONMessage(data)
	}
}

// handleJSONMessage routes JSON messages to their channels
func (c *Client) handleJSONMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case TypeServerTime:
		var timeMsg ServerTime
		if err := DecodePayload(msg.Payload, &timeMsg); err != nil {
			log.Printf("Failed to parse server/time: %v", err)
			return
		}
		deliver(c.ctx, c.TimeSyncResp, timeMsg)

	case TypeSessionTimeline:
		var tl SessionTimeline
		if err := DecodePayload(msg.Payload, &tl); err != nil {
			log.Printf("Failed to parse session/timeline: %v", err)
			return
		}
		deliver(c.ctx, c.Timelines, tl)

	case TypeSessionPeers:
		var peers SessionPeers
		if err := DecodePayload(msg.Payload, &peers); err != nil {
			log.Printf("Failed to parse session/peers: %v", err)
			return
		}
		deliver(c.ctx, c.Peers, peers)

	case TypeServerError:
		var se ServerError
		if err := DecodePayload(msg.Payload, &se); err == nil {
			log.Printf("Server error: %s (%s)", se.Message, se.Error)
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// deliver hands v to ch, dropping it if the consumer stalls
func deliver[T any](ctx context.Context, ch chan T, v T) {
	select {
	case ch <- v:
	case <-ctx.Done():
	case <-time.After(100 * time.Millisecond):
		log.Printf("Channel full, dropping %T", v)
	}
}

// SendTimeSync sends a client/time message
func (c *Client) SendTimeSync(t1 int64) error {
	return c.send(TypeClientTime, ClientTime{ClientTransmitted: t1})
}

// SendTempo asks the host to change the session tempo
func (c *Client) SendTempo(bpm float64) error {
	return c.send(TypeSessionTempo, SessionTempo{Tempo: bpm})
}

// SendGoodbye sends a client/goodbye message before disconnecting
func (c *Client) SendGoodbye(reason string) error {
	return c.send(TypeClientGoodbye, ClientGoodbye{Reason: reason})
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
