// ABOUTME: Package documentation for the session host
// ABOUTME: Hosts share one timeline with peers over websocket
// Package session hosts a link tempo session for peers on the network.
package session
