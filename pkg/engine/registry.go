// ABOUTME: Handle registry for engines
// ABOUTME: Maps integer handles to engines; unknown handles are ignored
package engine

import (
	"log"
	"sync"
)

// Handle names an engine at the integer boundary. Zero means "not created".
type Handle uint64

// Registry maps handles to engines. Every operation except CreateEngine
// ignores zero and unknown handles.
type Registry struct {
	config Config

	mu      sync.Mutex
	next    Handle
	engines map[Handle]*Engine
}

// NewRegistry creates a registry building engines from config
func NewRegistry(config Config) *Registry {
	return &Registry{
		config:  config,
		engines: make(map[Handle]*Engine),
	}
}

// CreateEngine builds an engine and returns its handle, or 0 on failure
func (r *Registry) CreateEngine() Handle {
	e, err := New(r.config)
	if err != nil {
		log.Printf("Failed to create engine: %v", err)
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	h := r.next
	r.engines[h] = e
	return h
}

// DeleteEngine closes and forgets an engine
func (r *Registry) DeleteEngine(h Handle) {
	r.mu.Lock()
	e, ok := r.engines[h]
	delete(r.engines, h)
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := e.Close(); err != nil {
		log.Printf("Error closing engine %d: %v", h, err)
	}
}

// LinkEnable toggles link sync
func (r *Registry) LinkEnable(h Handle, on bool) {
	r.Engine(h).EnableLink(on)
}

// CreateStream opens the engine's stream; failures leave it unopened
func (r *Registry) CreateStream(h Handle) {
	if err := r.Engine(h).CreateStream(); err != nil {
		log.Printf("Failed to create stream for engine %d: %v", h, err)
	}
}

// PlayAudio sets the playing flag
func (r *Registry) PlayAudio(h Handle, on bool) {
	r.Engine(h).Play(on)
}

// Engine returns the engine for h, or nil. Methods on a nil *Engine are no-ops.
func (r *Registry) Engine(h Handle) *Engine {
	if h == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engines[h]
}

// Len returns the number of live engines
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// Close deletes every engine
func (r *Registry) Close() {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.engines))
	for h := range r.engines {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		r.DeleteEngine(h)
	}
}
