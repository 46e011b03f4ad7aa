package provider_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/shauryaverma03/listen-chat-create/internal/provider"
)

type mockSession struct{}

func (s *mockSession) Write(_ []byte) error   { return nil }
func (s *mockSession) Close() (string, error) { return "transcribed text", nil }

type mockRecognizer struct{ name string }

func (m *mockRecognizer) Name() string { return m.name }
func (m *mockRecognizer) NewSession(_ context.Context) (provider.RecognitionSession, error) {
	return &mockSession{}, nil
}

type mockSynthesizer struct{ name string }

func (m *mockSynthesizer) Name() string { return m.name }
func (m *mockSynthesizer) Synthesize(_ context.Context, _ string) (io.ReadCloser, string, error) {
	return io.NopCloser(strings.NewReader("audio")), "audio/mpeg", nil
}

func TestRegistry_RegisterAndGetRecognizer(t *testing.T) {
	reg := provider.NewRegistry()
	reg.RegisterRecognizer(&mockRecognizer{name: "test-stt"})

	p, err := reg.Recognizer("test-stt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "test-stt" {
		t.Errorf("expected name %q, got %q", "test-stt", p.Name())
	}
}

func TestRegistry_RecognizerNotFound(t *testing.T) {
	reg := provider.NewRegistry()
	_, err := reg.Recognizer("nonexistent")
	if err == nil {
		t.Fatal("expected error for nonexistent engine")
	}
}

func TestRegistry_RegisterAndGetSynthesizer(t *testing.T) {
	reg := provider.NewRegistry()
	reg.RegisterSynthesizer(&mockSynthesizer{name: "test-tts"})

	p, err := reg.Synthesizer("test-tts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "test-tts" {
		t.Errorf("expected name %q, got %q", "test-tts", p.Name())
	}
}

func TestRegistry_ListEngines(t *testing.T) {
	reg := provider.NewRegistry()
	reg.RegisterRecognizer(&mockRecognizer{name: "stt-a"})
	reg.RegisterRecognizer(&mockRecognizer{name: "stt-b"})
	reg.RegisterSynthesizer(&mockSynthesizer{name: "tts-a"})

	if got := len(reg.ListRecognizers()); got != 2 {
		t.Errorf("expected 2 recognizers, got %d", got)
	}
	if got := len(reg.ListSynthesizers()); got != 1 {
		t.Errorf("expected 1 synthesizer, got %d", got)
	}
}
