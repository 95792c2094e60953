// ABOUTME: Tests for the TUI model
// ABOUTME: Covers status updates, key actions and rendering
package ui

import (
	"strings"
	"testing"

	"github.com/Resonate-Protocol/linkaudio/internal/sync"
	"github.com/Resonate-Protocol/linkaudio/pkg/engine"
	tea "github.com/charmbracelet/bubbletea"
)

func sized(m Model) Model {
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model)
}

func TestViewLoadingBeforeSize(t *testing.T) {
	m := NewModel(nil)
	if got := m.View(); got != "Loading..." {
		t.Errorf("expected loading view, got %q", got)
	}
}

func TestStatusMsgUpdatesStats(t *testing.T) {
	m := sized(NewModel(nil))

	stats := engine.Stats{
		State:       engine.StatePlaying,
		Playing:     true,
		LinkEnabled: true,
		Tempo:       120,
		Beat:        9.5,
		Phase:       1.5,
		Quantum:     4,
		Peers:       2,
		Callbacks:   42,
	}
	updated, _ := m.Update(StatusMsg{Stats: &stats, Session: "studio:8928"})
	m = updated.(Model)

	view := m.View()
	for _, want := range []string{"▶ Playing", "Link on (2 peers)", "120.00 BPM", "studio:8928", "Callbacks: 42"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestPartialStatusKeepsFields(t *testing.T) {
	m := NewModel(nil)
	m.applyStatus(StatusMsg{Session: "a"})
	m.applyStatus(StatusMsg{Format: "48000 Hz"})

	if m.session != "a" {
		t.Errorf("session overwritten: %q", m.session)
	}
}

func TestSyncQualityRendering(t *testing.T) {
	m := sized(NewModel(nil))
	remote := true
	connected := true
	m.applyStatus(StatusMsg{Remote: &remote, Connected: &connected, SyncRTT: 1500, SyncOffset: 200, SyncQuality: sync.QualityGood})

	if !strings.Contains(m.View(), "Synced") {
		t.Error("expected synced status in view")
	}
}

func TestKeysSendActions(t *testing.T) {
	control := NewControl()
	m := NewModel(control)
	m.stats.Tempo = 120

	keys := []tea.KeyMsg{
		{Type: tea.KeySpace, Runes: []rune(" ")},
		{Type: tea.KeyRunes, Runes: []rune("l")},
		{Type: tea.KeyRunes, Runes: []rune("+")},
	}
	for _, k := range keys {
		updated, _ := m.Update(k)
		m = updated.(Model)
	}

	want := []Action{
		{Kind: ActionPlay, On: true},
		{Kind: ActionLink, On: true},
		{Kind: ActionTempo, Tempo: 121},
	}
	for i, w := range want {
		select {
		case got := <-control.Actions:
			if got != w {
				t.Errorf("action %d: got %+v, want %+v", i, got, w)
			}
		default:
			t.Fatalf("action %d missing", i)
		}
	}
}

func TestQuitKey(t *testing.T) {
	control := NewControl()
	m := NewModel(control)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}

	if got := <-control.Actions; got.Kind != ActionQuit {
		t.Errorf("expected quit action, got %+v", got)
	}
}

func TestDebugToggle(t *testing.T) {
	m := sized(NewModel(nil))
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	m = updated.(Model)

	if !strings.Contains(m.View(), "DEBUG") {
		t.Error("debug panel not shown")
	}
}

func TestRenderBeats(t *testing.T) {
	if got := renderBeats(2.3, 4); got != "○ ○ ● ○" {
		t.Errorf("unexpected beats %q", got)
	}
	if got := renderBeats(0, 0); got != "" {
		t.Errorf("expected empty beats, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("unexpected truncate %q", got)
	}
	if got := truncate("abc", 6); got != "abc" {
		t.Errorf("short strings unchanged, got %q", got)
	}
}
