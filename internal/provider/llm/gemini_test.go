package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shauryaverma03/listen-chat-create/internal/chat"
	"github.com/shauryaverma03/listen-chat-create/internal/provider"
	"github.com/shauryaverma03/listen-chat-create/internal/provider/llm"
)

// wire mirrors of the request body, for asserting on serialized JSON.
type geminiWire struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text       string `json:"text"`
			InlineData *struct {
				MimeType string `json:"mimeType"`
				Data     string `json:"data"`
			} `json:"inlineData"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
		TopP            float64 `json:"topP"`
		TopK            int     `json:"topK"`
	} `json:"generationConfig"`
}

func decodeGemini(t *testing.T, body []byte) geminiWire {
	t.Helper()
	var w geminiWire
	if err := json.Unmarshal(body, &w); err != nil {
		t.Fatalf("serialized body is not valid JSON: %v", err)
	}
	return w
}

func TestGemini_SerializeFoldsSystemIntoFirstUserTurn(t *testing.T) {
	a := llm.NewGemini("key")
	history := []chat.Message{
		{Role: chat.RoleSystem, Text: "Be concise"},
		{Role: chat.RoleUser, Text: "Hello"},
	}

	body, err := a.Serialize(history, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w := decodeGemini(t, body)

	if len(w.Contents) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(w.Contents))
	}
	if w.Contents[0].Role != "user" {
		t.Errorf("first turn role = %q, want user", w.Contents[0].Role)
	}
	text := w.Contents[0].Parts[0].Text
	if !strings.HasPrefix(text, "Be concise") {
		t.Errorf("system text not folded in: %q", text)
	}
	if !strings.HasSuffix(text, "Hello") {
		t.Errorf("user text lost: %q", text)
	}
}

func TestGemini_SerializeFoldsExactlyOnce(t *testing.T) {
	a := llm.NewGemini("key")
	history := []chat.Message{
		{Role: chat.RoleSystem, Text: "Be concise"},
		{Role: chat.RoleUser, Text: "one"},
		{Role: chat.RoleAssistant, Text: "reply"},
		{Role: chat.RoleUser, Text: "two"},
	}

	body, err := a.Serialize(history, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w := decodeGemini(t, body)

	if len(w.Contents) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(w.Contents))
	}
	folded := 0
	for _, c := range w.Contents {
		for _, p := range c.Parts {
			if strings.Contains(p.Text, "Be concise") {
				folded++
			}
		}
	}
	if folded != 1 {
		t.Errorf("system text appears %d times, want exactly 1", folded)
	}
	if !strings.Contains(w.Contents[0].Parts[0].Text, "Be concise") {
		t.Error("system text must fold into the first user turn")
	}
}

func TestGemini_SerializeRoleMapping(t *testing.T) {
	a := llm.NewGemini("key")
	history := []chat.Message{
		{Role: chat.RoleUser, Text: "q"},
		{Role: chat.RoleAssistant, Text: "a"},
	}

	body, _ := a.Serialize(history, "")
	w := decodeGemini(t, body)

	if w.Contents[0].Role != "user" || w.Contents[1].Role != "model" {
		t.Errorf("role mapping wrong: %q, %q", w.Contents[0].Role, w.Contents[1].Role)
	}
}

func TestGemini_SerializeGenerationConfig(t *testing.T) {
	a := llm.NewGemini("key")
	body, _ := a.Serialize([]chat.Message{{Role: chat.RoleUser, Text: "hi"}}, "")
	w := decodeGemini(t, body)

	gc := w.GenerationConfig
	if gc.Temperature != 0.7 || gc.MaxOutputTokens != 800 || gc.TopP != 0.95 || gc.TopK != 40 {
		t.Errorf("generation config drifted: %+v", gc)
	}
}

func TestGemini_SerializePendingImageOnLastUserTurn(t *testing.T) {
	a := llm.NewGemini("key")
	history := []chat.Message{
		{Role: chat.RoleUser, Text: "what is this?"},
	}

	body, _ := a.Serialize(history, "cGVuZGluZw==")
	w := decodeGemini(t, body)

	parts := w.Contents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("expected text + image parts, got %d", len(parts))
	}
	if parts[1].InlineData == nil {
		t.Fatal("image part missing")
	}
	if parts[1].InlineData.MimeType != "image/jpeg" {
		t.Errorf("mime type = %q, want image/jpeg", parts[1].InlineData.MimeType)
	}
	if parts[1].InlineData.Data != "cGVuZGluZw==" {
		t.Errorf("image data = %q", parts[1].InlineData.Data)
	}
}

func TestGemini_SerializePendingImageNeverOnNonLastUserTurn(t *testing.T) {
	a := llm.NewGemini("key")
	history := []chat.Message{
		{Role: chat.RoleUser, Text: "first"},
		{Role: chat.RoleAssistant, Text: "reply"},
	}

	body, _ := a.Serialize(history, "cGVuZGluZw==")
	w := decodeGemini(t, body)

	for i, c := range w.Contents {
		for _, p := range c.Parts {
			if p.InlineData != nil {
				t.Errorf("turn %d gained an image part; last turn is not a user turn", i)
			}
		}
	}
}

func TestGemini_SerializeAtMostOneImagePartPerTurn(t *testing.T) {
	a := llm.NewGemini("key")
	history := []chat.Message{
		{Role: chat.RoleUser, Text: "look", ImageData: "b3du"},
	}

	// The turn's own image wins; pendingImage must not double up.
	body, _ := a.Serialize(history, "cGVuZGluZw==")
	w := decodeGemini(t, body)

	images := 0
	for _, p := range w.Contents[0].Parts {
		if p.InlineData != nil {
			images++
			if p.InlineData.Data != "b3du" {
				t.Errorf("expected the message's own image, got %q", p.InlineData.Data)
			}
		}
	}
	if images != 1 {
		t.Errorf("turn has %d image parts, want 1", images)
	}
}

func TestGemini_SerializeSystemOnlyHistory(t *testing.T) {
	a := llm.NewGemini("key")
	history := []chat.Message{{Role: chat.RoleSystem, Text: "Be concise"}}

	body, err := a.Serialize(history, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w := decodeGemini(t, body)
	if len(w.Contents) != 1 || w.Contents[0].Role != "user" {
		t.Fatalf("system-only history must yield one user turn: %+v", w.Contents)
	}
	if w.Contents[0].Parts[0].Text != "Be concise" {
		t.Errorf("system text lost: %q", w.Contents[0].Parts[0].Text)
	}
}

func TestGemini_ExtractReply(t *testing.T) {
	a := llm.NewGemini("key")

	text, err := a.ExtractReply([]byte(`{"candidates":[{"content":{"parts":[{"text":"hi there"}]}}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hi there" {
		t.Errorf("reply = %q", text)
	}
}

func TestGemini_ExtractReplyEmptyTextIsValid(t *testing.T) {
	a := llm.NewGemini("key")

	text, err := a.ExtractReply([]byte(`{"candidates":[{"content":{"parts":[{"text":""}]}}]}`))
	if err != nil {
		t.Fatalf("a well-formed empty reply is not an error, got %v", err)
	}
	if text != "" {
		t.Errorf("reply = %q, want empty", text)
	}
}

func TestGemini_ExtractReplyFormatErrors(t *testing.T) {
	a := llm.NewGemini("key")
	cases := []struct {
		name string
		body string
	}{
		{"no candidates", `{"candidates":[]}`},
		{"missing candidates", `{}`},
		{"no parts", `{"candidates":[{"content":{"parts":[]}}]}`},
		{"not json", `<html>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.ExtractReply([]byte(tc.body))
			var fe *provider.FormatError
			if !errors.As(err, &fe) {
				t.Errorf("expected FormatError, got %v", err)
			}
		})
	}
}

func TestGemini_CompleteRoundTrip(t *testing.T) {
	var gotPath string
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"pong"}]}}]}`))
	}))
	defer srv.Close()

	a := llm.NewGemini("secret", llm.WithBaseURL(srv.URL))
	reply, err := a.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Text: "ping"}}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "pong" {
		t.Errorf("reply = %q", reply)
	}
	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("credential header = %q", gotKey)
	}
}

func TestGemini_CompleteProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	a := llm.NewGemini("bad", llm.WithBaseURL(srv.URL))
	_, err := a.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Text: "hi"}}, "")

	var pe *provider.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Status != http.StatusBadRequest || pe.Message != "API key not valid" {
		t.Errorf("unexpected provider error: %+v", pe)
	}
}

func TestGemini_CompleteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	a := llm.NewGemini("key", llm.WithBaseURL(srv.URL))
	_, err := a.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Text: "hi"}}, "")

	var te *provider.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestGemini_CompleteNoCredential(t *testing.T) {
	a := llm.NewGemini("")
	_, err := a.Complete(context.Background(), []chat.Message{{Role: chat.RoleUser, Text: "hi"}}, "")

	var ae *provider.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestGemini_DescribeImageOneShot(t *testing.T) {
	var got geminiWire
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"a cat"}]}}]}`))
	}))
	defer srv.Close()

	a := llm.NewGemini("key", llm.WithBaseURL(srv.URL))
	reply, err := a.DescribeImage(context.Background(), "what is this?", "aW1n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "a cat" {
		t.Errorf("reply = %q", reply)
	}

	if len(got.Contents) != 1 {
		t.Fatalf("one-shot call must carry exactly one turn, got %d", len(got.Contents))
	}
	parts := got.Contents[0].Parts
	if len(parts) != 2 || parts[0].Text != "what is this?" || parts[1].InlineData == nil {
		t.Errorf("unexpected one-shot payload: %+v", parts)
	}
	if got.GenerationConfig.MaxOutputTokens != 800 {
		t.Errorf("one-shot call must carry the same generation config, got %+v", got.GenerationConfig)
	}
}
