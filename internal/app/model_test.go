package app

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/crumble-dev/crumble/pkg/record"
	"github.com/crumble-dev/crumble/pkg/session"
)

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestModelAppliesStatusNotice(t *testing.T) {
	m := sized(NewModel(nil))
	m.sess = &session.LiveSession{}

	next, _ := m.Update(SessionNoticeMsg{Notice: session.StatusNotice{
		State: session.StateAnalyzing,
		Text:  "Analyzing screen...",
	}})
	m = next.(Model)

	if m.state != session.StateAnalyzing {
		t.Fatalf("state = %v, want analyzing", m.state)
	}
	if m.statusText != "Analyzing screen..." {
		t.Fatalf("statusText = %q", m.statusText)
	}
}

func TestModelAppendsEntriesInOrder(t *testing.T) {
	m := sized(NewModel(nil))
	m.sess = &session.LiveSession{}

	for _, msg := range []string{"first", "second"} {
		next, _ := m.Update(SessionNoticeMsg{Notice: session.EntryNotice{
			Entry: record.TranscriptEntry{Type: record.EntryFeedback, Message: msg, Time: "00:01"},
		}})
		m = next.(Model)
	}

	if len(m.entries) != 2 || m.entries[0].Message != "first" || m.entries[1].Message != "second" {
		t.Fatalf("entries = %+v", m.entries)
	}
	view := m.View()
	if !strings.Contains(view, "first") || !strings.Contains(view, "second") {
		t.Fatalf("view missing transcript entries:\n%s", view)
	}
}

func TestModelRetractsSpeakingMarkerFromTranscript(t *testing.T) {
	m := sized(NewModel(nil))
	m.sess = &session.LiveSession{}

	notices := []session.Notice{
		session.EntryNotice{Entry: record.TranscriptEntry{Type: record.EntryAnalyzing, Message: "Session active — analyzing your screen", Time: "00:00"}},
		session.EntryNotice{Entry: record.TranscriptEntry{Type: record.EntryAnalyzing, Message: "AI is speaking", Time: "00:03"}},
		session.EntryRemovedNotice{Type: record.EntryAnalyzing},
		session.EntryNotice{Entry: record.TranscriptEntry{Type: record.EntryFeedback, Message: "The nav contrast is too low", Time: "00:05"}},
	}
	for _, n := range notices {
		next, _ := m.Update(SessionNoticeMsg{Notice: n})
		m = next.(Model)
	}

	if len(m.entries) != 2 {
		t.Fatalf("entries = %+v, want 2", m.entries)
	}
	if m.entries[0].Message != "Session active — analyzing your screen" {
		t.Fatalf("entries[0] = %+v, want session-active entry kept", m.entries[0])
	}
	if m.entries[1].Message != "The nav contrast is too low" {
		t.Fatalf("entries[1] = %+v, want feedback entry", m.entries[1])
	}
	if strings.Contains(m.View(), "AI is speaking") {
		t.Fatalf("view still shows retracted marker:\n%s", m.View())
	}
}

func TestModelTickUpdatesTimer(t *testing.T) {
	m := sized(NewModel(nil))
	m.sess = &session.LiveSession{}

	next, _ := m.Update(SessionNoticeMsg{Notice: session.TickNotice{Elapsed: 75 * time.Second}})
	m = next.(Model)

	if m.elapsed != 75*time.Second {
		t.Fatalf("elapsed = %v", m.elapsed)
	}
	if !strings.Contains(m.View(), "01:15") {
		t.Fatalf("view missing formatted timer:\n%s", m.View())
	}
}

func TestModelErrorBannerShowsAndDismisses(t *testing.T) {
	m := sized(NewModel(nil))
	m.sess = &session.LiveSession{}

	next, cmd := m.Update(SessionNoticeMsg{Notice: session.ErrorNotice{Message: "Connection error: reset"}})
	m = next.(Model)
	if cmd == nil {
		t.Fatalf("error notice returned no dismiss command")
	}
	if !strings.Contains(m.View(), "Connection error: reset") {
		t.Fatalf("view missing error banner:\n%s", m.View())
	}

	next, _ = m.Update(errorClearMsg{})
	m = next.(Model)
	if strings.Contains(m.View(), "Connection error: reset") {
		t.Fatalf("error banner not dismissed:\n%s", m.View())
	}
}

func TestModelSessionEndedResetsToLanding(t *testing.T) {
	m := sized(NewModel(nil))
	m.sess = &session.LiveSession{}

	next, _ := m.Update(SessionEndedMsg{})
	m = next.(Model)
	if m.sess != nil {
		t.Fatalf("session still set after end")
	}
	if !strings.Contains(m.View(), "s start session") {
		t.Fatalf("footer missing start hint:\n%s", m.View())
	}
}

func TestModelStartKeyIgnoredWhileRunning(t *testing.T) {
	m := sized(NewModel(nil))
	m.sess = &session.LiveSession{}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if cmd != nil {
		t.Fatalf("start command issued while a session is active")
	}
}
