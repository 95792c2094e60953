// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channel carrying key actions to the engine
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ActionKind identifies a user request
type ActionKind int

const (
	ActionPlay ActionKind = iota
	ActionLink
	ActionTempo
	ActionQuit
)

// Action is a user request for the engine
type Action struct {
	Kind  ActionKind
	On    bool
	Tempo float64
}

// Control carries actions from the TUI to the engine
type Control struct {
	Actions chan Action
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Actions: make(chan Action, 10),
	}
}

// NewModel creates a new TUI model
func NewModel(control *Control) Model {
	return Model{control: control}
}

// Run creates the TUI program; the caller runs it
func Run(control *Control) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(control), tea.WithAltScreen())
	return p, nil
}
