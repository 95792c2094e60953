// ABOUTME: Link tempo and phase synchronization package
// ABOUTME: Shared session timelines and a realtime position controller
// Package link keeps an engine's musical position aligned with a shared
// tempo session.
//
// A Session publishes a Timeline (tempo plus a beat/time origin). A
// Controller follows the timeline from the audio callback without locking,
// and falls back to local sample counting when link is disabled.
//
// Example:
//
//	session := link.NewLocalSession(link.SystemClock{}, 240)
//	ctrl := link.NewController(session, 4)
//	ctrl.SetEnabled(true)
//
//	// in the audio callback
//	span := ctrl.Advance(hostTime, frames, sampleRate)
package link
