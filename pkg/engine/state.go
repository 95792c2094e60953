// ABOUTME: Engine lifecycle states
// ABOUTME: Reported by Engine.State and Stats
package engine

// State is the engine lifecycle stage
type State int

const (
	StateUninitialized State = iota
	StateCreated
	StateStreamReady
	StatePlaying
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCreated:
		return "created"
	case StateStreamReady:
		return "stream ready"
	case StatePlaying:
		return "playing"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}
