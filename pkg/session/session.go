// Package session drives one live review session: ordered startup,
// turn-taking state, dispatch of service events to playback and the
// transcript, and full teardown.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crumble-dev/crumble/pkg/audio"
	"github.com/crumble-dev/crumble/pkg/capture"
	"github.com/crumble-dev/crumble/pkg/core"
	"github.com/crumble-dev/crumble/pkg/gemlive"
	"github.com/crumble-dev/crumble/pkg/record"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAnalyzing
	StateSpeaking
	StateListening
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAnalyzing:
		return "analyzing"
	case StateSpeaking:
		return "speaking"
	case StateListening:
		return "listening"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is a tagged variant delivered on LiveSession.Notices().
type Notice interface {
	sessionNoticeType() string
}

// StatusNotice reports a state change with display text.
type StatusNotice struct {
	State State
	Text  string
}

func (StatusNotice) sessionNoticeType() string { return "status" }

// EntryNotice carries a transcript entry as it is appended.
type EntryNotice struct {
	Entry record.TranscriptEntry
}

func (EntryNotice) sessionNoticeType() string { return "entry" }

// EntryRemovedNotice reports that the newest transcript entry of Type
// was retracted from the record, so transcript views drop it too.
type EntryRemovedNotice struct {
	Type record.EntryType
}

func (EntryRemovedNotice) sessionNoticeType() string { return "entry_removed" }

// TickNotice reports elapsed session time, once per second.
type TickNotice struct {
	Elapsed time.Duration
}

func (TickNotice) sessionNoticeType() string { return "tick" }

// ErrorNotice carries a transient, banner-worthy error message. The
// matching transcript entry arrives separately.
type ErrorNotice struct {
	Message string
}

func (ErrorNotice) sessionNoticeType() string { return "error" }

// StoppedNotice is the final notice before the channel closes.
type StoppedNotice struct{}

func (StoppedNotice) sessionNoticeType() string { return "stopped" }

// TokenFetcher fetches the credential used to open the service
// connection.
type TokenFetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// MicSource is a best-effort microphone: failure to start degrades the
// session to listen-only rather than aborting it.
type MicSource interface {
	SetConsumer(fn func(samples []float32))
	Start(ctx context.Context) (<-chan error, error)
	Close() error
}

// Conn is the live duplex service connection.
type Conn interface {
	Events() <-chan gemlive.Event
	SendMedia(chunk gemlive.MediaChunk) error
	Close() error
	Err() error
}

// Player schedules synthesized speech playback.
type Player interface {
	Enqueue(pcm []byte) (time.Time, error)
	Flush() error
}

// Config wires a LiveSession. Token, Screen, Player and Recorder are
// required; Mic is optional (nil means no microphone at all).
type Config struct {
	Token    TokenFetcher
	Screen   func() (capture.FrameSource, error)
	Mic      MicSource
	Player   Player
	Recorder *record.Recorder

	// Connect opens the service connection; defaults to gemlive.Connect.
	Connect func(ctx context.Context, cfg gemlive.Config) (Conn, error)

	// Model defaults to gemlive.DefaultModel.
	Model string

	// SystemInstruction defaults to DefaultSystemPrompt.
	SystemInstruction string

	// FrameInterval and FrameRetryDelay tune the sampler; zero values
	// use the sampler defaults.
	FrameInterval   time.Duration
	FrameRetryDelay time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Connect == nil {
		c.Connect = func(ctx context.Context, cfg gemlive.Config) (Conn, error) {
			return gemlive.Connect(ctx, cfg)
		}
	}
	if c.SystemInstruction == "" {
		c.SystemInstruction = DefaultSystemPrompt
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// LiveSession is one active session instance. A stopped session is
// terminal; starting again requires a fresh instance.
type LiveSession struct {
	cfg Config

	notices chan Notice
	done    chan struct{}

	cancel   context.CancelFunc
	stopOnce sync.Once

	conn    Conn
	screen  capture.FrameSource
	sampler *capture.Sampler
	encoder *audio.Encoder

	mu             sync.Mutex
	state          State
	micOK          bool
	active         bool
	speakingMarker bool
	turnHadText    bool
	recordID       string
	noticesClosed  bool
}

// Start runs the ordered startup sequence: token, screen, microphone
// (best effort), service connection, then media production. Any
// failure other than the microphone unwinds everything acquired so far
// and finalizes the record before returning.
func Start(ctx context.Context, cfg Config) (*LiveSession, error) {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(ctx)

	s := &LiveSession{
		cfg:     cfg,
		notices: make(chan Notice, 128),
		done:    make(chan struct{}),
		cancel:  cancel,
		state:   StateConnecting,
		encoder: audio.NewEncoder(),
	}

	cfg.Recorder.Begin()
	s.setStatus(StateConnecting, "Getting token...")
	s.appendEntry(record.EntrySystem, "Requesting authentication...")

	tok, err := cfg.Token.Fetch(ctx)
	if err != nil {
		return nil, s.failStart(err)
	}
	s.appendEntry(record.EntrySystem, "Token received")

	s.setStatus(StateConnecting, "Starting screen capture...")
	s.appendEntry(record.EntrySystem, "Starting screen capture...")
	screen, err := cfg.Screen()
	if err != nil {
		return nil, s.failStart(core.NewAcquisitionError("screen", "screen capture unavailable", err))
	}
	s.screen = screen
	s.appendEntry(record.EntrySystem, "Screen capture active")

	s.setStatus(StateConnecting, "Requesting mic access...")
	s.appendEntry(record.EntrySystem, "Requesting microphone...")
	if cfg.Mic != nil {
		if micErrs, micErr := cfg.Mic.Start(ctx); micErr != nil {
			cfg.Logger.Warn("microphone unavailable, continuing listen-only", "error", micErr)
			s.emit(ErrorNotice{Message: "Mic denied — AI will critique but you can't interrupt"})
			s.appendEntry(record.EntryError, "Microphone denied — listen-only mode")
		} else {
			s.mu.Lock()
			s.micOK = true
			s.mu.Unlock()
			cfg.Mic.SetConsumer(s.encoder.Write)
			s.appendEntry(record.EntrySystem, "Microphone connected")
			go s.watchMic(micErrs)
		}
	} else {
		s.emit(ErrorNotice{Message: "Mic denied — AI will critique but you can't interrupt"})
		s.appendEntry(record.EntryError, "Microphone denied — listen-only mode")
	}

	s.setStatus(StateConnecting, "Connecting to Gemini...")
	s.appendEntry(record.EntrySystem, "Connecting to Gemini Live...")
	conn, err := cfg.Connect(ctx, gemlive.Config{
		Token:             tok,
		Model:             cfg.Model,
		SystemInstruction: cfg.SystemInstruction,
	})
	if err != nil {
		s.closeCapture()
		return nil, s.failStart(err)
	}
	s.conn = conn

	s.mu.Lock()
	s.active = true
	s.mu.Unlock()

	s.sampler = capture.NewSampler(screen, capture.SamplerConfig{
		Interval:   cfg.FrameInterval,
		RetryDelay: cfg.FrameRetryDelay,
		Logger:     cfg.Logger,
	})
	s.sampler.SetConsumer(func(jpegData []byte) {
		if err := conn.SendMedia(gemlive.MediaChunk{MIMEType: "image/jpeg", Data: jpegData}); err != nil {
			cfg.Logger.Debug("drop video frame", "error", err)
		}
	})
	s.encoder.SetConsumer(func(pcm []byte) {
		if err := conn.SendMedia(gemlive.MediaChunk{MIMEType: "audio/pcm;rate=16000", Data: pcm}); err != nil {
			cfg.Logger.Debug("drop audio chunk", "error", err)
		}
	})

	go func() { _ = s.sampler.Run(ctx) }()
	go s.tickLoop(ctx)
	go s.runLoop()
	return s, nil
}

// failStart records the fatal startup error, finalizes the record and
// returns err for the caller.
func (s *LiveSession) failStart(err error) error {
	s.setStatus(StateError, "Failed to start")
	s.emit(ErrorNotice{Message: err.Error()})
	s.appendEntry(record.EntryError, "Failed: "+err.Error())
	s.cancel()
	if id, ferr := s.cfg.Recorder.Finalize(); ferr != nil {
		s.cfg.Logger.Warn("archive session record", "error", ferr)
	} else {
		s.mu.Lock()
		s.recordID = id
		s.mu.Unlock()
	}
	s.emit(StoppedNotice{})
	s.closeNotices()
	close(s.done)
	return err
}

// Notices yields UI-facing session updates. Closed after StoppedNotice.
func (s *LiveSession) Notices() <-chan Notice {
	if s == nil {
		return nil
	}
	return s.notices
}

// Done closes when the session has fully torn down.
func (s *LiveSession) Done() <-chan struct{} {
	if s == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// State returns the current lifecycle state.
func (s *LiveSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MicActive reports whether the microphone was acquired; false means
// the session runs listen-only.
func (s *LiveSession) MicActive() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.micOK
}

// RecordID returns the archived record's id once the session stopped,
// or "" when nothing was persisted.
func (s *LiveSession) RecordID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordID
}

// Stop tears the session down: media production, connection, screen,
// microphone, playback, then the record. Idempotent; also invoked
// internally when the transport closes.
func (s *LiveSession) Stop() {
	if s == nil {
		return
	}
	s.stop(StateIdle, "Session ended")
}

func (s *LiveSession) stop(final State, statusText string) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()

		s.cancel()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.closeCapture()
		if err := s.cfg.Player.Flush(); err != nil {
			s.cfg.Logger.Warn("flush playback", "error", err)
		}

		if id, err := s.cfg.Recorder.Finalize(); err != nil {
			s.cfg.Logger.Warn("archive session record", "error", err)
		} else {
			s.mu.Lock()
			s.recordID = id
			s.mu.Unlock()
		}

		s.setStatus(final, statusText)
		s.emit(StoppedNotice{})
		s.closeNotices()
	})
}

func (s *LiveSession) closeCapture() {
	if s.screen != nil {
		_ = s.screen.Close()
	}
	if s.cfg.Mic != nil {
		_ = s.cfg.Mic.Close()
	}
}

// runLoop is the single consumer of service events; every state
// transition after startup happens here.
func (s *LiveSession) runLoop() {
	defer close(s.done)
	for ev := range s.conn.Events() {
		switch ev := ev.(type) {
		case gemlive.OpenedEvent:
			s.setStatus(StateAnalyzing, "Analyzing screen...")
			s.appendEntry(record.EntryAnalyzing, "Session active — analyzing your screen")
		case gemlive.AudioEvent:
			s.handleAudio(ev)
		case gemlive.TextEvent:
			s.handleText(ev)
		case gemlive.TurnCompleteEvent:
			s.handleTurnComplete()
		case gemlive.InterruptedEvent:
			s.handleInterrupted()
		case gemlive.ClosedEvent:
			s.handleClosed()
			return
		}
	}
	s.handleClosed()
}

func (s *LiveSession) handleAudio(ev gemlive.AudioEvent) {
	s.mu.Lock()
	marker := s.speakingMarker
	s.speakingMarker = true
	s.mu.Unlock()

	s.setStatus(StateSpeaking, "AI is speaking...")
	if !marker {
		s.appendEntry(record.EntryAnalyzing, speakingMarkerText)
	}
	if _, err := s.cfg.Player.Enqueue(ev.Data); err != nil {
		s.cfg.Logger.Warn("enqueue playback", "error", err)
	}
}

func (s *LiveSession) handleText(ev gemlive.TextEvent) {
	s.removeSpeakingMarker()
	s.appendEntry(record.EntryFeedback, ev.Text)
	s.mu.Lock()
	s.turnHadText = true
	s.mu.Unlock()
}

func (s *LiveSession) handleTurnComplete() {
	s.removeSpeakingMarker()
	s.mu.Lock()
	hadText := s.turnHadText
	s.turnHadText = false
	active := s.active
	s.mu.Unlock()

	if !hadText {
		s.appendEntry(record.EntrySystem, "Feedback delivered")
	}
	if active {
		s.setStatus(StateAnalyzing, "Analyzing screen...")
	}
}

func (s *LiveSession) handleInterrupted() {
	if err := s.cfg.Player.Flush(); err != nil {
		s.cfg.Logger.Warn("flush playback", "error", err)
	}
	s.removeSpeakingMarker()
	s.setStatus(StateListening, "Listening to you...")
	s.appendEntry(record.EntryListening, "You interrupted — listening...")
}

// handleClosed runs when the inbound event channel ends: a transport
// error becomes a terminal error state, a clean close while active is
// a normal stop.
func (s *LiveSession) handleClosed() {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if !active {
		s.stop(StateIdle, "Session ended")
		return
	}
	if err := s.conn.Err(); err != nil {
		s.emit(ErrorNotice{Message: "Connection error: " + err.Error()})
		s.appendEntry(record.EntryError, "Connection error: "+err.Error())
		s.stop(StateError, "Connection lost")
		return
	}
	s.stop(StateIdle, "Session ended")
}

const speakingMarkerText = "AI is speaking"

func (s *LiveSession) removeSpeakingMarker() {
	s.mu.Lock()
	had := s.speakingMarker
	s.speakingMarker = false
	s.mu.Unlock()
	if had && s.cfg.Recorder.RemoveLast(record.EntryAnalyzing) {
		s.emit(EntryRemovedNotice{Type: record.EntryAnalyzing})
	}
}

// watchMic surfaces a mid-session capture death: the session continues
// listen-only rather than ending.
func (s *LiveSession) watchMic(errs <-chan error) {
	err, ok := <-errs
	if !ok || err == nil {
		return
	}
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active {
		s.cfg.Logger.Warn("microphone stopped, continuing listen-only", "error", err)
		s.emit(ErrorNotice{Message: "Mic stopped — AI will critique but you can't interrupt"})
		s.appendEntry(record.EntryError, "Microphone stopped — listen-only mode")
	}
	s.mu.Lock()
	s.micOK = false
	s.mu.Unlock()
}

func (s *LiveSession) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.emit(TickNotice{Elapsed: s.cfg.Recorder.Elapsed()})
		}
	}
}

func (s *LiveSession) setStatus(state State, text string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.emit(StatusNotice{State: state, Text: text})
}

func (s *LiveSession) appendEntry(typ record.EntryType, message string) {
	entry := s.cfg.Recorder.Append(typ, message)
	if entry.Type != "" {
		s.emit(EntryNotice{Entry: entry})
	}
}

func (s *LiveSession) emit(n Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noticesClosed {
		return
	}
	select {
	case s.notices <- n:
	default:
		// UI updates are droppable; never block the run loop.
	}
}

func (s *LiveSession) closeNotices() {
	s.mu.Lock()
	if s.noticesClosed {
		s.mu.Unlock()
		return
	}
	s.noticesClosed = true
	s.mu.Unlock()
	close(s.notices)
}
