// ABOUTME: Engine error definitions
// ABOUTME: Sentinel errors returned by engine construction and control
package engine

import "errors"

var (
	// ErrNoDevice means the audio subsystem has no usable output device
	ErrNoDevice = errors.New("no audio output device")

	// ErrDestroyed is returned by operations that report failure on a closed engine
	ErrDestroyed = errors.New("engine destroyed")

	// ErrNoStream is returned when restarting before a stream exists
	ErrNoStream = errors.New("no stream")
)
