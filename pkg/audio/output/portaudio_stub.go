//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"
)

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output device (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio device
func NewPortAudio() Device {
	return &PortAudio{}
}

// Name identifies the backend
func (p *PortAudio) Name() string {
	return "portaudio"
}

// Probe reports the backend is unavailable
func (p *PortAudio) Probe() error {
	return errors.Join(ErrUnavailable, errPortAudioDisabled)
}

// Open always fails
func (p *PortAudio) Open(params StreamParams, cb Callback) (Stream, error) {
	return nil, errPortAudioDisabled
}

// Close is a no-op
func (p *PortAudio) Close() error {
	return nil
}
