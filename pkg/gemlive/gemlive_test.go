package gemlive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestDecodeServerFrame(t *testing.T) {
	audioB64 := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0x03, 0x04})

	tests := []struct {
		name string
		raw  string
		want []Event
	}{
		{
			name: "setup complete carries no events",
			raw:  `{"setupComplete":{}}`,
			want: nil,
		},
		{
			name: "audio part",
			raw:  `{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"` + audioB64 + `"}}]}}}`,
			want: []Event{AudioEvent{MIMEType: "audio/pcm;rate=24000", Data: []byte{0x01, 0x02, 0x03, 0x04}}},
		},
		{
			name: "text part",
			raw:  `{"serverContent":{"modelTurn":{"parts":[{"text":"contrast is too low"}]}}}`,
			want: []Event{TextEvent{Text: "contrast is too low"}},
		},
		{
			name: "turn complete",
			raw:  `{"serverContent":{"turnComplete":true}}`,
			want: []Event{TurnCompleteEvent{}},
		},
		{
			name: "interrupted",
			raw:  `{"serverContent":{"interrupted":true}}`,
			want: []Event{InterruptedEvent{}},
		},
		{
			name: "parts then turn complete in one frame",
			raw:  `{"serverContent":{"modelTurn":{"parts":[{"text":"done"}]},"turnComplete":true}}`,
			want: []Event{TextEvent{Text: "done"}, TurnCompleteEvent{}},
		},
		{
			name: "non-audio inline data is ignored",
			raw:  `{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"image/jpeg","data":"` + audioB64 + `"}}]}}}`,
			want: nil,
		},
		{
			name: "unknown fields are ignored",
			raw:  `{"usageMetadata":{"totalTokenCount":12}}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeServerFrame([]byte(tt.raw))
			if err != nil {
				t.Fatalf("decodeServerFrame() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("decodeServerFrame() = %d events, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				switch want := tt.want[i].(type) {
				case AudioEvent:
					a, ok := got[i].(AudioEvent)
					if !ok {
						t.Fatalf("event[%d] = %T, want AudioEvent", i, got[i])
					}
					if a.MIMEType != want.MIMEType || string(a.Data) != string(want.Data) {
						t.Fatalf("event[%d] = %+v, want %+v", i, a, want)
					}
				case TextEvent:
					if got[i] != want {
						t.Fatalf("event[%d] = %+v, want %+v", i, got[i], want)
					}
				default:
					if got[i] != tt.want[i] {
						t.Fatalf("event[%d] = %T, want %T", i, got[i], tt.want[i])
					}
				}
			}
		})
	}
}

func TestDecodeServerFrameRejectsMalformedJSON(t *testing.T) {
	if _, err := decodeServerFrame([]byte(`{"serverContent":`)); err == nil {
		t.Fatalf("decodeServerFrame() error = nil, want parse error")
	}
}

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "models/" + DefaultModel},
		{"gemini-2.0-flash-exp", "models/gemini-2.0-flash-exp"},
		{"models/gemini-2.0-flash-exp", "models/gemini-2.0-flash-exp"},
	}
	for _, tt := range tests {
		if got := normalizeModel(tt.in); got != tt.want {
			t.Fatalf("normalizeModel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// liveServer fakes the inference endpoint: it validates the setup
// frame, acknowledges it, then replays scripted frames.
func liveServer(t *testing.T, script []string, sawMedia chan<- realtimeInputFrame) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") == "" {
			http.Error(w, "missing key", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var setup setupFrame
		if err := conn.ReadJSON(&setup); err != nil {
			t.Errorf("read setup: %v", err)
			return
		}
		if !strings.HasPrefix(setup.Setup.Model, "models/") {
			t.Errorf("setup model = %q, want models/ prefix", setup.Setup.Model)
		}
		if len(setup.Setup.GenerationConfig.ResponseModalities) != 1 || setup.Setup.GenerationConfig.ResponseModalities[0] != "AUDIO" {
			t.Errorf("setup modalities = %v, want [AUDIO]", setup.Setup.GenerationConfig.ResponseModalities)
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`)); err != nil {
			return
		}
		for _, frame := range script {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var in realtimeInputFrame
			if json.Unmarshal(data, &in) == nil && sawMedia != nil {
				select {
				case sawMedia <- in:
				default:
				}
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectHandshakeAndEventFlow(t *testing.T) {
	audioB64 := base64.StdEncoding.EncodeToString([]byte{0x10, 0x20})
	script := []string{
		`{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"` + audioB64 + `"}}]}}}`,
		`{"serverContent":{"modelTurn":{"parts":[{"text":"feedback"}]},"turnComplete":true}}`,
	}
	sawMedia := make(chan realtimeInputFrame, 1)
	srv := liveServer(t, script, sawMedia)
	defer srv.Close()

	conn, err := Connect(context.Background(), Config{
		Token:             "test-token",
		SystemInstruction: "audit the screen",
		Endpoint:          wsURL(srv),
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer conn.Close()

	var got []Event
	timeout := time.After(5 * time.Second)
	for len(got) < 4 {
		select {
		case ev, ok := <-conn.Events():
			if !ok {
				t.Fatalf("events channel closed early; got %d events, err = %v", len(got), conn.Err())
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out after %d events", len(got))
		}
	}

	if _, ok := got[0].(OpenedEvent); !ok {
		t.Fatalf("event[0] = %T, want OpenedEvent", got[0])
	}
	audio, ok := got[1].(AudioEvent)
	if !ok {
		t.Fatalf("event[1] = %T, want AudioEvent", got[1])
	}
	if string(audio.Data) != "\x10\x20" {
		t.Fatalf("audio data = %v, want [16 32]", audio.Data)
	}
	if text, ok := got[2].(TextEvent); !ok || text.Text != "feedback" {
		t.Fatalf("event[2] = %+v, want TextEvent{feedback}", got[2])
	}
	if _, ok := got[3].(TurnCompleteEvent); !ok {
		t.Fatalf("event[3] = %T, want TurnCompleteEvent", got[3])
	}

	if err := conn.SendMedia(MediaChunk{MIMEType: "audio/pcm;rate=16000", Data: []byte{1, 2, 3}}); err != nil {
		t.Fatalf("SendMedia() error = %v", err)
	}
	select {
	case in := <-sawMedia:
		if len(in.RealtimeInput.MediaChunks) != 1 {
			t.Fatalf("media chunks = %d, want 1", len(in.RealtimeInput.MediaChunks))
		}
		chunk := in.RealtimeInput.MediaChunks[0]
		if chunk.MIMEType != "audio/pcm;rate=16000" {
			t.Fatalf("chunk mime type = %q", chunk.MIMEType)
		}
		if chunk.Data != base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) {
			t.Fatalf("chunk data = %q not base64 of payload", chunk.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server never received media")
	}
}

func TestConnectRequiresToken(t *testing.T) {
	if _, err := Connect(context.Background(), Config{}); err == nil {
		t.Fatalf("Connect() error = nil, want token error")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	srv := liveServer(t, nil, nil)
	defer srv.Close()

	conn, err := Connect(context.Background(), Config{Token: "t", Endpoint: wsURL(srv)})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	var nilConn *Conn
	if err := nilConn.Close(); err != nil {
		t.Fatalf("nil Close() error = %v", err)
	}
}
