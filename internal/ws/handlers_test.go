package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shauryaverma03/listen-chat-create/internal/chat"
	"github.com/shauryaverma03/listen-chat-create/internal/config"
	"github.com/shauryaverma03/listen-chat-create/internal/provider"
	"github.com/shauryaverma03/listen-chat-create/internal/session"
	"github.com/shauryaverma03/listen-chat-create/internal/ws"
)

type scriptedAdapter struct {
	reply string
}

func (a *scriptedAdapter) Name() provider.Identity { return provider.Gemini }
func (a *scriptedAdapter) SupportsVision() bool    { return true }
func (a *scriptedAdapter) Serialize(_ []chat.Message, _ string) ([]byte, error) {
	return []byte(`{}`), nil
}
func (a *scriptedAdapter) ExtractReply(_ []byte) (string, error) { return a.reply, nil }
func (a *scriptedAdapter) Complete(_ context.Context, _ []chat.Message, _ string) (string, error) {
	return a.reply, nil
}
func (a *scriptedAdapter) DescribeImage(_ context.Context, _, _ string) (string, error) {
	return a.reply, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		DefaultProvider:    "gemini",
		DefaultRecognizer:  "none",
		DefaultSynthesizer: "none",
		AllowedOrigin:      "*",
		RequestTimeout:     5 * time.Second,
	}
}

func newWidgetConn(t *testing.T, adapter provider.Adapter) *websocket.Conn {
	t.Helper()

	handler := ws.NewChatHandler(testConfig(), provider.NewRegistry()).
		WithControllerFactory(func(log *chat.Log, opts ...session.Option) *session.Controller {
			opts = append(opts, session.WithAdapterFactory(
				func(_ provider.Identity, _ string) (provider.Adapter, error) {
					return adapter, nil
				}))
			return session.NewController(log, opts...)
		})
	hub := ws.NewHub(handler, "*")

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, _ := json.Marshal(payload)
	data, _ := json.Marshal(ws.Envelope{Type: typ, Payload: raw})
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("failed to write %s: %v", typ, err)
	}
}

// readUntil reads envelopes until pred accepts one, failing on timeout.
func readUntil(t *testing.T, conn *websocket.Conn, pred func(ws.Envelope) bool) ws.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		var env ws.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("bad envelope: %v", err)
		}
		if pred(env) {
			return env
		}
	}
}

func TestChatHandler_SubmitFlow(t *testing.T) {
	conn := newWidgetConn(t, &scriptedAdapter{reply: "hi from the model"})

	sendEnvelope(t, conn, "chat.provider", ws.ProviderPayload{Provider: "gemini", APIKey: "key"})
	sendEnvelope(t, conn, "chat.submit", ws.SubmitPayload{Text: "hello"})

	env := readUntil(t, conn, func(env ws.Envelope) bool {
		if env.Type != "state" {
			return false
		}
		var s ws.StatePayload
		json.Unmarshal(env.Payload, &s)
		return len(s.Messages) == 2 && !s.IsSending
	})

	var state ws.StatePayload
	json.Unmarshal(env.Payload, &state)
	if state.Messages[0].Role != "user" || state.Messages[0].Text != "hello" {
		t.Errorf("unexpected user turn: %+v", state.Messages[0])
	}
	if state.Messages[1].Role != "assistant" || state.Messages[1].Text != "hi from the model" {
		t.Errorf("unexpected assistant turn: %+v", state.Messages[1])
	}
	if state.LastError != "" {
		t.Errorf("unexpected error: %q", state.LastError)
	}
}

// blockingAdapter parks Complete until the test releases it, simulating a
// provider call that outlives the client's connection.
type blockingAdapter struct {
	release chan struct{}
	reply   string
}

func (a *blockingAdapter) Name() provider.Identity { return provider.Gemini }
func (a *blockingAdapter) SupportsVision() bool    { return true }
func (a *blockingAdapter) Serialize(_ []chat.Message, _ string) ([]byte, error) {
	return []byte(`{}`), nil
}
func (a *blockingAdapter) ExtractReply(_ []byte) (string, error) { return a.reply, nil }
func (a *blockingAdapter) Complete(_ context.Context, _ []chat.Message, _ string) (string, error) {
	<-a.release
	return a.reply, nil
}
func (a *blockingAdapter) DescribeImage(_ context.Context, _, _ string) (string, error) {
	<-a.release
	return a.reply, nil
}

func TestChatHandler_DisconnectMidSubmitDropsLateResult(t *testing.T) {
	adapter := &blockingAdapter{release: make(chan struct{}), reply: "too late"}
	conn := newWidgetConn(t, adapter)

	sendEnvelope(t, conn, "chat.provider", ws.ProviderPayload{Provider: "gemini", APIKey: "key"})
	sendEnvelope(t, conn, "chat.submit", ws.SubmitPayload{Text: "hello"})

	// Poll until the submit is parked inside the provider call.
	deadline := time.Now().Add(2 * time.Second)
	for {
		sendEnvelope(t, conn, "state.get", struct{}{})
		env := readUntil(t, conn, func(env ws.Envelope) bool { return env.Type == "state" })
		var s ws.StatePayload
		json.Unmarshal(env.Payload, &s)
		if s.IsSending {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("submit never entered sending")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Drop the socket while the call is in flight, then let it resolve.
	// The late result has nowhere to go; it must be discarded without
	// taking the hub down.
	conn.Close()
	close(adapter.release)
	time.Sleep(100 * time.Millisecond)
}

func TestChatHandler_SubmitWithoutProviderSurfacesError(t *testing.T) {
	conn := newWidgetConn(t, &scriptedAdapter{})

	sendEnvelope(t, conn, "chat.submit", ws.SubmitPayload{Text: "hello"})

	env := readUntil(t, conn, func(env ws.Envelope) bool { return env.Type == "error" })
	var p map[string]string
	json.Unmarshal(env.Payload, &p)
	if p["error"] == "" {
		t.Error("expected a human-readable error message")
	}
}

func TestChatHandler_StateGet(t *testing.T) {
	conn := newWidgetConn(t, &scriptedAdapter{})

	sendEnvelope(t, conn, "state.get", struct{}{})
	env := readUntil(t, conn, func(env ws.Envelope) bool { return env.Type == "state" })

	var state ws.StatePayload
	json.Unmarshal(env.Payload, &state)
	if state.IsSending || state.IsListening || state.IsSpeaking {
		t.Errorf("fresh session must be quiescent: %+v", state)
	}
	if len(state.Messages) != 0 {
		t.Errorf("fresh session must have no visible messages, got %d", len(state.Messages))
	}
}
