// Package gemlive is a minimal client for the Gemini Live
// BidiGenerateContent websocket API: one outbound media stream of
// interleaved audio and image chunks, one inbound stream of synthesized
// audio, feedback text and turn signals.
package gemlive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crumble-dev/crumble/pkg/core"
)

const (
	// DefaultEndpoint is the production live websocket endpoint.
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the native-audio live model.
	DefaultModel = "gemini-2.5-flash-native-audio-preview-12-2025"

	defaultConnectTimeout = 15 * time.Second
)

// Config configures a live connection.
type Config struct {
	// Token authenticates the connection; appended as the key query
	// parameter. Required.
	Token string

	// Model defaults to DefaultModel. The "models/" prefix is added
	// when absent.
	Model string

	// SystemInstruction primes the model for the session. Optional.
	SystemInstruction string

	// Endpoint overrides the websocket URL; used by tests.
	Endpoint string
}

// Event is a tagged variant emitted by Conn.Events().
type Event interface {
	liveEventType() string
}

// OpenedEvent is emitted once, after the server acknowledges setup.
type OpenedEvent struct{}

func (OpenedEvent) liveEventType() string { return "opened" }

// AudioEvent carries one chunk of synthesized speech, raw 16-bit PCM.
type AudioEvent struct {
	MIMEType string
	Data     []byte
}

func (AudioEvent) liveEventType() string { return "audio" }

// TextEvent carries model feedback text.
type TextEvent struct {
	Text string
}

func (TextEvent) liveEventType() string { return "text" }

// TurnCompleteEvent marks the end of a model turn.
type TurnCompleteEvent struct{}

func (TurnCompleteEvent) liveEventType() string { return "turn_complete" }

// InterruptedEvent signals that the user talked over the model; queued
// playback should be discarded.
type InterruptedEvent struct{}

func (InterruptedEvent) liveEventType() string { return "interrupted" }

// ClosedEvent is the final event before the channel closes. A non-nil
// terminal error is available via Err().
type ClosedEvent struct{}

func (ClosedEvent) liveEventType() string { return "closed" }

// MediaChunk is one outbound media payload.
type MediaChunk struct {
	MIMEType string
	Data     []byte
}

// Conn is an open live session. Events are consumed from Events();
// SendMedia may be called from any goroutine.
type Conn struct {
	conn *websocket.Conn

	events chan Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	return model
}

func endpointURL(cfg Config) (string, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse live endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the live endpoint, performs setup and waits for the
// server's acknowledgement before returning. The first event on
// Events() is OpenedEvent.
func Connect(ctx context.Context, cfg Config) (*Conn, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, core.NewTransportError("connect", "token must not be empty", nil)
	}
	wsURL, err := endpointURL(cfg)
	if err != nil {
		return nil, core.NewTransportError("connect", "invalid endpoint", err)
	}

	dialer := websocket.DefaultDialer
	if dialer == nil {
		dialer = &websocket.Dialer{}
	}
	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, core.NewTransportError("connect", fmt.Sprintf("websocket dial failed (status %d)", resp.StatusCode), err)
		}
		return nil, core.NewTransportError("connect", "websocket dial failed", err)
	}

	setup := setupFrame{Setup: setupPayload{
		Model:            normalizeModel(cfg.Model),
		GenerationConfig: generationConfig{ResponseModalities: []string{"AUDIO"}},
	}}
	if strings.TrimSpace(cfg.SystemInstruction) != "" {
		setup.Setup.SystemInstruction = &content{Parts: []part{{Text: cfg.SystemInstruction}}}
	}
	if err := conn.WriteJSON(setup); err != nil {
		_ = conn.Close()
		return nil, core.NewTransportError("setup", "send setup frame", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(defaultConnectTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, core.NewTransportError("setup", "read setup acknowledgement", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var frame serverFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		_ = conn.Close()
		return nil, core.NewTransportError("setup", "decode setup acknowledgement", err)
	}
	if frame.SetupComplete == nil {
		_ = conn.Close()
		return nil, core.NewTransportError("setup", "server did not acknowledge setup", nil)
	}

	c := &Conn{
		conn:   conn,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	c.emit(OpenedEvent{})
	go c.readLoop()
	return c, nil
}

// Events yields decoded server events. The channel closes after
// ClosedEvent once the connection ends.
func (c *Conn) Events() <-chan Event {
	if c == nil {
		return nil
	}
	return c.events
}

// SendMedia forwards one media chunk as realtimeInput.
func (c *Conn) SendMedia(chunk MediaChunk) error {
	if c == nil {
		return fmt.Errorf("conn must not be nil")
	}
	if c.closed.Load() {
		return fmt.Errorf("live connection is closed")
	}
	frame := realtimeInputFrame{RealtimeInput: realtimeInput{
		MediaChunks: []inlineData{{
			MIMEType: chunk.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(chunk.Data),
		}},
	}}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(frame)
}

// Close closes the websocket and waits for the read loop to drain.
// Safe to call multiple times and on a nil receiver.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	<-c.done
	return nil
}

// Err returns the terminal connection error, if any. Blocks until the
// read loop finishes.
func (c *Conn) Err() error {
	if c == nil {
		return nil
	}
	<-c.done
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) setErr(err error) {
	if err == nil {
		return
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Conn) readLoop() {
	defer func() {
		c.emit(ClosedEvent{})
		close(c.events)
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || c.closed.Load() {
				return
			}
			c.setErr(core.NewTransportError("read", "read live frame", err))
			return
		}
		events, err := decodeServerFrame(data)
		if err != nil {
			c.setErr(err)
			return
		}
		for _, ev := range events {
			c.emit(ev)
		}
	}
}

func (c *Conn) emit(ev Event) {
	if ev == nil {
		return
	}
	select {
	case c.events <- ev:
	default:
		// Avoid deadlocking the read loop if the caller stops consuming.
	}
}

// decodeServerFrame turns one raw websocket text frame into zero or
// more events, in protocol order: model parts first, then interrupted,
// then turn completion.
func decodeServerFrame(data []byte) ([]Event, error) {
	var frame serverFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, core.NewTransportError("read", "decode live frame", err)
	}
	if frame.ServerContent == nil {
		return nil, nil
	}

	var events []Event
	sc := frame.ServerContent
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil && strings.HasPrefix(p.InlineData.MIMEType, "audio/pcm") {
				raw, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					return nil, core.NewTransportError("read", "decode audio chunk", err)
				}
				events = append(events, AudioEvent{MIMEType: p.InlineData.MIMEType, Data: raw})
				continue
			}
			if p.Text != "" {
				events = append(events, TextEvent{Text: p.Text})
			}
		}
	}
	if sc.Interrupted {
		events = append(events, InterruptedEvent{})
	}
	if sc.TurnComplete {
		events = append(events, TurnCompleteEvent{})
	}
	return events, nil
}
