// ABOUTME: Single-handle engine host
// ABOUTME: Wraps a registry for callers holding at most one engine
package engine

import "sync"

// Host holds at most one engine handle for a caller. Create is idempotent
// and every other call is a no-op until Create succeeds.
type Host struct {
	registry *Registry

	mu     sync.Mutex
	handle Handle
}

// NewHost creates a host with its own registry
func NewHost(config Config) *Host {
	return &Host{registry: NewRegistry(config)}
}

// Create makes the engine if there is none. Reports whether a handle is held.
func (h *Host) Create() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.handle == 0 {
		h.handle = h.registry.CreateEngine()
	}
	return h.handle != 0
}

// Delete destroys the engine and clears the handle
func (h *Host) Delete() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.handle != 0 {
		h.registry.DeleteEngine(h.handle)
		h.handle = 0
	}
}

// EnableLink toggles link sync
func (h *Host) EnableLink(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.handle != 0 {
		h.registry.LinkEnable(h.handle, on)
	}
}

// CreateStream opens the output stream
func (h *Host) CreateStream() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.handle != 0 {
		h.registry.CreateStream(h.handle)
	}
}

// Play starts or stops playback
func (h *Host) Play(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.handle != 0 {
		h.registry.PlayAudio(h.handle, on)
	}
}

// Handle returns the held handle (0 when none)
func (h *Host) Handle() Handle {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handle
}

// Engine returns the held engine, or nil
func (h *Host) Engine() *Engine {
	return h.registry.Engine(h.Handle())
}
