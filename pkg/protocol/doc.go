// ABOUTME: Link session wire protocol package
// ABOUTME: Defines protocol messages and WebSocket client
// Package protocol implements the link session wire protocol.
//
// Peers exchange JSON messages with a session host over a WebSocket at
// /linkaudio: a hello handshake, NTP-style time sync, and session timeline,
// tempo and peer count updates. No audio crosses the wire.
//
// Example:
//
//	client := protocol.NewClient(protocol.Config{
//		ServerAddr: "localhost:20808",
//		ClientID:   uuid.New().String(),
//		Name:       "studio",
//	})
//	err := client.Connect()
//	err = client.SendTimeSync(now)
package protocol
