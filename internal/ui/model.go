// ABOUTME: Bubbletea model for the engine TUI
// ABOUTME: Defines panel state, key handling and rendering
package ui

import (
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/linkaudio/internal/sync"
	"github.com/Resonate-Protocol/linkaudio/pkg/engine"
	tea "github.com/charmbracelet/bubbletea"
)

// TempoStep is the BPM change per +/- key press
const TempoStep = 1.0

// Model represents the TUI state
type Model struct {
	// Engine
	stats  engine.Stats
	format string

	// Session
	session     string
	connected   bool
	syncOffset  int64
	syncRTT     int64
	syncQuality sync.Quality
	remote      bool

	// Debug
	showDebug bool

	control *Control

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderTransport()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders engine and session status
func (m Model) renderHeader() string {
	session := "Local session"
	if m.session != "" {
		session = m.session
	}
	if m.remote && !m.connected {
		session += " (disconnected)"
	}

	syncIcon := "-"
	syncText := "n/a"
	if m.remote {
		syncIcon = "✗"
		syncText = "Lost"
		switch m.syncQuality {
		case sync.QualityGood:
			syncIcon = "✓"
			syncText = fmt.Sprintf("Synced (offset: %+.1fms, rtt: %.1fms)",
				float64(m.syncOffset)/1000.0, float64(m.syncRTT)/1000.0)
		case sync.QualityDegraded:
			syncIcon = "⚠"
			syncText = "Degraded"
		}
	}

	return fmt.Sprintf(`┌─ linkaudio ──────────────────────────────────────────┐
│ Engine:  %-44s │
│ Session: %-44s │
│ Sync:    %s %-42s │
├──────────────────────────────────────────────────────┤
`, truncate(fmt.Sprintf("%s %s", m.stats.State, m.format), 44), truncate(session, 44), syncIcon, truncate(syncText, 42))
}

// renderTransport renders play/link flags, tempo and the beat display
func (m Model) renderTransport() string {
	play := "■ Stopped"
	if m.stats.Playing {
		play = "▶ Playing"
	}
	linkState := "Link off"
	if m.stats.LinkEnabled {
		linkState = fmt.Sprintf("Link on (%d peers)", m.stats.Peers)
	}

	phaseBar := renderBar(int(m.stats.Phase*100), int(m.stats.Quantum*100), 20)

	return fmt.Sprintf("│ %-12s %-39s │\n"+
		"│ Tempo: %6.2f BPM   Beat: %10.2f%-15s │\n"+
		"│ Bar:   %-45s │\n"+
		"│ Phase: [%s] %4.2f/%-4.0f%-12s │\n",
		play, linkState,
		m.stats.Tempo, m.stats.Beat, "",
		renderBeats(m.stats.Phase, m.stats.Quantum),
		phaseBar, m.stats.Phase, m.stats.Quantum, "")
}

// renderStats renders engine counters
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Stats:  Callbacks: %d  Underflows: %d  Overflows: %d%-4s │
│                                                      │
`, m.stats.Callbacks, m.stats.Underflows, m.stats.Overflows, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ space:Play  l:Link  +/-:Tempo  d:Debug  q:Quit       │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	streamErr := "none"
	if m.stats.StreamErr != nil {
		streamErr = m.stats.StreamErr.Error()
	}
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Backend: %-41s │
│   Frames: %-42d │
│   Restarts: %-40d │
│   Fill target: %-37d │
│   Stream error: %-36s │
│   Clock Offset: %+dμs
`, m.stats.Backend, m.stats.Frames, m.stats.Restarts, m.stats.BufferFrames, truncate(streamErr, 36), m.syncOffset)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.send(Action{Kind: ActionQuit})
		return m, tea.Quit
	case " ":
		m.stats.Playing = !m.stats.Playing
		m.send(Action{Kind: ActionPlay, On: m.stats.Playing})
	case "l":
		m.stats.LinkEnabled = !m.stats.LinkEnabled
		m.send(Action{Kind: ActionLink, On: m.stats.LinkEnabled})
	case "+", "=", "up":
		m.stats.Tempo += TempoStep
		m.send(Action{Kind: ActionTempo, Tempo: m.stats.Tempo})
	case "-", "down":
		m.stats.Tempo -= TempoStep
		m.send(Action{Kind: ActionTempo, Tempo: m.stats.Tempo})
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// send forwards an action without blocking the UI
func (m Model) send(a Action) {
	if m.control == nil {
		return
	}
	select {
	case m.control.Actions <- a:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Stats != nil {
		m.stats = *msg.Stats
	}
	if msg.Format != "" {
		m.format = msg.Format
	}
	if msg.Session != "" {
		m.session = msg.Session
	}
	if msg.Remote != nil {
		m.remote = *msg.Remote
	}
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.SyncRTT != 0 || msg.SyncOffset != 0 {
		m.syncOffset = msg.SyncOffset
		m.syncRTT = msg.SyncRTT
		m.syncQuality = msg.SyncQuality
	}
}

// StatusMsg updates TUI state. Zero fields leave the model unchanged.
type StatusMsg struct {
	Stats       *engine.Stats
	Format      string
	Session     string
	Remote      *bool
	Connected   *bool
	SyncOffset  int64
	SyncRTT     int64
	SyncQuality sync.Quality
}

// Utility functions
func renderBar(value, max, width int) string {
	if max <= 0 {
		return strings.Repeat("░", width)
	}
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

// renderBeats draws one box per beat of the quantum, lighting the current one
func renderBeats(phase, quantum float64) string {
	n := int(quantum)
	if n <= 0 {
		return ""
	}
	if n > 16 {
		n = 16
	}
	current := int(phase)
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		if i == current {
			b.WriteString("●")
		} else {
			b.WriteString("○")
		}
	}
	return b.String()
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
