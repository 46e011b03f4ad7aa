package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/shauryaverma03/listen-chat-create/internal/chat"
	"github.com/shauryaverma03/listen-chat-create/internal/config"
	"github.com/shauryaverma03/listen-chat-create/internal/provider"
	"github.com/shauryaverma03/listen-chat-create/internal/session"
	"github.com/shauryaverma03/listen-chat-create/internal/voice"
)

// SubmitPayload is the payload for "chat.submit" messages.
type SubmitPayload struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"` // base64 JPEG
}

// ProviderPayload is the payload for "chat.provider" messages.
type ProviderPayload struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

// AudioChunkPayload is the payload for "voice.chunk" messages.
type AudioChunkPayload struct {
	Data string `json:"data"` // base64 audio
}

// TranscriptPayload is the payload for "voice.transcript" messages sent to
// the client when the mic stops with a finalized transcript.
type TranscriptPayload struct {
	Text string `json:"text"`
}

// PlaybackPayload is the payload for "voice.audio" messages carrying
// synthesized speech to the client.
type PlaybackPayload struct {
	Data        string `json:"data"` // base64 audio
	ContentType string `json:"content_type"`
}

// MessageView is one conversation turn as shown to the client.
type MessageView struct {
	Role     string `json:"role"`
	Text     string `json:"text"`
	HasImage bool   `json:"has_image,omitempty"`
}

// StatePayload is the payload for "state" messages: the full UI-facing
// snapshot pushed after every event that could have changed it.
type StatePayload struct {
	Provider    string        `json:"provider,omitempty"`
	Messages    []MessageView `json:"messages"`
	IsSending   bool          `json:"is_sending"`
	LastError   string        `json:"last_error,omitempty"`
	IsListening bool          `json:"is_listening"`
	IsSpeaking  bool          `json:"is_speaking"`
}

// clientSession is the conversation state bound to one connected widget.
type clientSession struct {
	controller *session.Controller
	bridge     *voice.Bridge
}

// ChatHandler implements MessageHandler for the widget protocol. Each
// client gets its own conversation log, lifecycle controller, and voice
// bridge; nothing survives a disconnect.
type ChatHandler struct {
	cfg      *config.Config
	registry *provider.Registry

	newController func(log *chat.Log, opts ...session.Option) *session.Controller
	sessions      sync.Map // clientID -> *clientSession
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(cfg *config.Config, registry *provider.Registry) *ChatHandler {
	return &ChatHandler{
		cfg:           cfg,
		registry:      registry,
		newController: session.NewController,
	}
}

// WithControllerFactory overrides controller construction. Tests use this
// to inject scripted adapters.
func (h *ChatHandler) WithControllerFactory(f func(log *chat.Log, opts ...session.Option) *session.Controller) *ChatHandler {
	h.newController = f
	return h
}

func (h *ChatHandler) HandleMessage(client *Client, env Envelope) {
	sess := h.sessionFor(client)

	switch env.Type {
	case "chat.submit":
		h.handleSubmit(client, sess, env.Payload)
	case "chat.provider":
		h.handleSetProvider(client, sess, env.Payload)
	case "voice.mic":
		sess.bridge.ToggleMic(context.Background())
		h.pushState(client, sess)
	case "voice.audio":
		sess.bridge.ToggleAudio()
		h.pushState(client, sess)
	case "voice.chunk":
		h.handleAudioChunk(client, sess, env.Payload)
	case "state.get":
		h.pushState(client, sess)
	default:
		slog.Warn("unknown message type", "type", env.Type, "client", client.ID)
	}
}

// ClientClosed releases the client's conversation state and cancels any
// in-flight work.
func (h *ChatHandler) ClientClosed(clientID string) {
	if v, ok := h.sessions.LoadAndDelete(clientID); ok {
		sess := v.(*clientSession)
		sess.controller.Close()
		sess.bridge.Close()
	}
}

// sessionFor returns the client's session, creating it on first contact.
func (h *ChatHandler) sessionFor(client *Client) *clientSession {
	if v, ok := h.sessions.Load(client.ID); ok {
		return v.(*clientSession)
	}

	log := chat.NewLog(h.cfg.SystemPrompt)

	recognizer, err := h.registry.Recognizer(h.cfg.DefaultRecognizer)
	if err != nil {
		slog.Warn("voice input unavailable", "engine", h.cfg.DefaultRecognizer, "error", err)
	}
	synth, err := h.registry.Synthesizer(h.cfg.DefaultSynthesizer)
	if err != nil {
		slog.Warn("voice output unavailable", "engine", h.cfg.DefaultSynthesizer, "error", err)
	}

	bridge := voice.NewBridge(recognizer, synth,
		&clientSink{client: client},
		func(text string) {
			payload, _ := json.Marshal(TranscriptPayload{Text: text})
			client.Send(Envelope{Type: "voice.transcript", Payload: payload})
		},
	)

	controller := h.newController(log,
		session.WithSpeaker(bridge.Speak),
		session.WithTimeout(h.cfg.RequestTimeout),
	)

	sess := &clientSession{controller: controller, bridge: bridge}
	actual, _ := h.sessions.LoadOrStore(client.ID, sess)
	return actual.(*clientSession)
}

func (h *ChatHandler) handleSubmit(client *Client, sess *clientSession, payload json.RawMessage) {
	var p SubmitPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		slog.Error("invalid chat.submit payload", "error", err, "client", client.ID)
		sendError(client, "Invalid submit payload")
		return
	}
	if p.Text == "" && p.Image == "" {
		sendError(client, "Nothing to send")
		return
	}

	go func() {
		err := sess.controller.Submit(context.Background(), p.Text, p.Image)
		if err != nil {
			if err == session.ErrBusy {
				sendError(client, "Please wait for the current response")
				return
			}
			msg := sess.controller.Snapshot().LastError
			if msg == "" {
				msg = err.Error()
			}
			sendError(client, msg)
		}
		h.pushState(client, sess)
	}()

	// Let the widget flip into its loading state right away.
	h.pushState(client, sess)
}

func (h *ChatHandler) handleSetProvider(client *Client, sess *clientSession, payload json.RawMessage) {
	var p ProviderPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		slog.Error("invalid chat.provider payload", "error", err, "client", client.ID)
		sendError(client, "Invalid provider payload")
		return
	}

	identity := provider.Identity(p.Provider)
	if p.Provider == "" {
		identity = provider.Identity(h.cfg.DefaultProvider)
	}

	// Keys supplied by the widget win; the server's own keys are the
	// fallback so a hosted deployment works without a key-entry form.
	key := p.APIKey
	if key == "" {
		switch identity {
		case provider.Gemini:
			key = h.cfg.GeminiAPIKey
		case provider.OpenAI:
			key = h.cfg.OpenAIAPIKey
		}
	}

	if err := sess.controller.SetProvider(identity, key); err != nil {
		sendError(client, err.Error())
		return
	}
	slog.Info("provider session created", "client", client.ID, "provider", identity)
	h.pushState(client, sess)
}

func (h *ChatHandler) handleAudioChunk(client *Client, sess *clientSession, payload json.RawMessage) {
	var p AudioChunkPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		slog.Warn("invalid voice.chunk payload", "error", err, "client", client.ID)
		return
	}
	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		slog.Warn("voice.chunk is not valid base64", "client", client.ID)
		return
	}
	sess.bridge.PushAudio(data)
}

func (h *ChatHandler) pushState(client *Client, sess *clientSession) {
	snap := sess.controller.Snapshot()

	views := make([]MessageView, 0, len(snap.Messages))
	for _, m := range snap.Messages {
		views = append(views, MessageView{
			Role:     string(m.Role),
			Text:     m.Text,
			HasImage: m.ImageData != "",
		})
	}

	payload, _ := json.Marshal(StatePayload{
		Provider:    string(snap.Provider),
		Messages:    views,
		IsSending:   snap.Sending,
		LastError:   snap.LastError,
		IsListening: sess.bridge.IsListening(),
		IsSpeaking:  sess.bridge.IsSpeaking(),
	})
	client.Send(Envelope{Type: "state", Payload: payload})
}

// clientSink forwards synthesized speech to the widget for playback.
type clientSink struct {
	client *Client
}

func (s *clientSink) PlayChunk(data []byte, contentType string) error {
	payload, _ := json.Marshal(PlaybackPayload{
		Data:        base64.StdEncoding.EncodeToString(data),
		ContentType: contentType,
	})
	return s.client.Send(Envelope{Type: "voice.audio", Payload: payload})
}

func sendError(client *Client, msg string) {
	errPayload, _ := json.Marshal(map[string]string{"error": msg})
	client.Send(Envelope{
		Type:    "error",
		Payload: errPayload,
	})
}
