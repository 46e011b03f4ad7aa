package stt

import (
	"bytes"
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/shauryaverma03/listen-chat-create/internal/provider"
)

// WhisperRecognizer opens recognition sessions backed by OpenAI Whisper.
type WhisperRecognizer struct {
	client *openai.Client
}

// NewWhisperRecognizer creates a Whisper recognizer.
func NewWhisperRecognizer(apiKey string) *WhisperRecognizer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &WhisperRecognizer{client: &client}
}

func (r *WhisperRecognizer) Name() string { return "whisper" }

func (r *WhisperRecognizer) NewSession(ctx context.Context) (provider.RecognitionSession, error) {
	return &whisperSession{ctx: ctx, client: r.client}, nil
}

type whisperSession struct {
	ctx    context.Context
	client *openai.Client
	buf    bytes.Buffer
}

func (s *whisperSession) Write(audio []byte) error {
	_, err := s.buf.Write(audio)
	return err
}

func (s *whisperSession) Close() (string, error) {
	if s.buf.Len() == 0 {
		return "", nil
	}
	transcription, err := s.client.Audio.Transcriptions.New(s.ctx, openai.AudioTranscriptionNewParams{
		File:  bytes.NewReader(s.buf.Bytes()),
		Model: openai.AudioModelWhisper1,
	})
	if err != nil {
		return "", fmt.Errorf("whisper STT error: %w", err)
	}
	return transcription.Text, nil
}
