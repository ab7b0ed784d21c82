package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/crumble-dev/crumble/internal/ui"
	"github.com/crumble-dev/crumble/pkg/record"
	"github.com/crumble-dev/crumble/pkg/session"
)

const errorBannerDuration = 4 * time.Second

// Model is the root bubbletea model: a landing view until a session
// starts, then live status, timer and transcript.
type Model struct {
	// startSession builds and starts a LiveSession; injected so the
	// command wiring stays out of the UI.
	startSession func(ctx context.Context) (*session.LiveSession, error)

	sess       *session.LiveSession
	starting   bool
	state      session.State
	statusText string
	elapsed    time.Duration
	entries    []record.TranscriptEntry

	errorMessage string

	width  int
	height int
}

// NewModel returns the landing-state model.
func NewModel(start func(ctx context.Context) (*session.LiveSession, error)) Model {
	return Model{
		startSession: start,
		state:        session.StateIdle,
		statusText:   "Press s to start a session",
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func startCmd(start func(ctx context.Context) (*session.LiveSession, error)) tea.Cmd {
	return func() tea.Msg {
		s, err := start(context.Background())
		if err != nil {
			return SessionStartErrorMsg{Err: err}
		}
		return SessionStartedMsg{Session: s}
	}
}

// readNoticeCmd reads one notice; each handled notice re-issues it so
// the stream drains without blocking Update.
func readNoticeCmd(s *session.LiveSession) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-s.Notices()
		if !ok {
			return SessionEndedMsg{}
		}
		return SessionNoticeMsg{Notice: n}
	}
}

func clearErrorCmd() tea.Cmd {
	return tea.Tick(errorBannerDuration, func(time.Time) tea.Msg {
		return errorClearMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case SessionStartedMsg:
		m.sess = msg.Session
		m.starting = false
		return m, readNoticeCmd(m.sess)

	case SessionStartErrorMsg:
		m.starting = false
		m.sess = nil
		m.state = session.StateError
		m.statusText = "Failed to start"
		m.errorMessage = msg.Err.Error()
		return m, clearErrorCmd()

	case SessionNoticeMsg:
		return m.handleNotice(msg.Notice)

	case SessionEndedMsg:
		m.sess = nil
		return m, nil

	case errorClearMsg:
		m.errorMessage = ""
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if m.sess != nil {
			m.sess.Stop()
		}
		return m, tea.Quit
	case "s":
		if m.sess == nil && !m.starting {
			m.starting = true
			m.state = session.StateConnecting
			m.statusText = "Starting..."
			m.entries = nil
			m.elapsed = 0
			return m, startCmd(m.startSession)
		}
	case "x":
		if m.sess != nil {
			m.sess.Stop()
		}
	}
	return m, nil
}

func (m Model) handleNotice(n session.Notice) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{readNoticeCmd(m.sess)}
	switch n := n.(type) {
	case session.StatusNotice:
		m.state = n.State
		m.statusText = n.Text
	case session.EntryNotice:
		m.entries = append(m.entries, n.Entry)
	case session.EntryRemovedNotice:
		m.entries = dropLastEntry(m.entries, n.Type)
	case session.TickNotice:
		m.elapsed = n.Elapsed
	case session.ErrorNotice:
		m.errorMessage = n.Message
		cmds = append(cmds, clearErrorCmd())
	case session.StoppedNotice:
		// The stream is about to close; SessionEndedMsg follows.
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderTranscript())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	if m.errorMessage != "" {
		sections = append(sections, ui.ErrorBarStyle.Render(m.errorMessage))
	}
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("CRUMBLE")

	var dot string
	if m.sess != nil || m.starting {
		dot = ui.LiveDotStyle.Render("● LIVE")
	} else {
		dot = ui.IdleDotStyle.Render("○ IDLE")
	}

	timer := ui.TimerStyle.Render(record.FormatElapsed(m.elapsed))
	status := ui.StatusStyle.Render(m.statusText)
	return fmt.Sprintf("%s  %s  %s  %s", title, dot, timer, status)
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return ui.StatusStyle.Render("No transcript yet")
	}

	// Keep the tail that fits the view.
	visible := m.height - 5
	if visible < 1 {
		visible = 1
	}
	entries := m.entries
	if len(entries) > visible {
		entries = entries[len(entries)-visible:]
	}

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(ui.TimestampStyle.Render(e.Time))
		b.WriteString(" ")
		b.WriteString(entryStyle(e.Type).Render(e.Message))
	}
	return b.String()
}

// dropLastEntry removes the newest entry of the given type, mirroring
// the record's tail retraction.
func dropLastEntry(entries []record.TranscriptEntry, typ record.EntryType) []record.TranscriptEntry {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Type == typ {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

func entryStyle(typ record.EntryType) lipgloss.Style {
	switch typ {
	case record.EntryAnalyzing:
		return ui.AnalyzingEntryStyle
	case record.EntryListening:
		return ui.ListeningEntryStyle
	case record.EntryFeedback:
		return ui.FeedbackEntryStyle
	case record.EntryError:
		return ui.ErrorEntryStyle
	default:
		return ui.SystemEntryStyle
	}
}

func (m Model) renderFooter() string {
	if m.sess != nil {
		return ui.FooterStyle.Render("x stop session  q quit")
	}
	return ui.FooterStyle.Render("s start session  q quit")
}
