// ABOUTME: Link session protocol message type definitions
// ABOUTME: Defines structs for the JSON messages exchanged with a session host
package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	// ProtocolVersion is sent in hello messages
	ProtocolVersion = 1

	// DefaultPort is the session host's default listen port
	DefaultPort = 20808

	// Path is the websocket endpoint on the session host
	Path = "/linkaudio"
)

// Message types
const (
	TypeClientHello     = "client/hello"
	TypeServerHello     = "server/hello"
	TypeClientTime      = "client/time"
	TypeServerTime      = "server/time"
	TypeClientGoodbye   = "client/goodbye"
	TypeSessionTimeline = "session/timeline"
	TypeSessionTempo    = "session/tempo"
	TypeSessionPeers    = "session/peers"
	TypeServerError     = "server/error"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// DecodePayload converts a generic payload into a typed message
func DecodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}

// ClientHello is sent by peers to join a session
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the host's response to client/hello
type ServerHello struct {
	ServerID  string `json:"server_id"`
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
}

// ClientGoodbye is sent before graceful disconnect
type ClientGoodbye struct {
	Reason string `json:"reason"` // "shutdown", "user_request"
}

// ClientTime is sent for clock synchronization
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Client timestamp in microseconds
}

// ServerTime is the response to client/time
type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Echoed client timestamp
	ServerReceived    int64 `json:"server_received"`    // Server receive timestamp
	ServerTransmitted int64 `json:"server_transmitted"` // Server send timestamp
}

// SessionTimeline is the session's tempo timeline in host clock microseconds
type SessionTimeline struct {
	Tempo      float64 `json:"tempo"`
	BeatOrigin float64 `json:"beat_origin"`
	TimeOrigin int64   `json:"time_origin"`
}

// SessionTempo asks the host to change the session tempo
type SessionTempo struct {
	Tempo float64 `json:"tempo"`
}

// SessionPeers reports how many peers are joined
type SessionPeers struct {
	Count int `json:"count"`
}

// ServerError reports a rejected request
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
