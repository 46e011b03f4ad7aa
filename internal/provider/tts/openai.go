// Package tts implements the text-to-speech engines.
package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAISynthesizer converts text to speech with OpenAI TTS.
type OpenAISynthesizer struct {
	client *openai.Client
}

// NewOpenAISynthesizer creates an OpenAI TTS synthesizer.
func NewOpenAISynthesizer(apiKey string) *OpenAISynthesizer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAISynthesizer{client: &client}
}

func (s *OpenAISynthesizer) Name() string { return "openai" }

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) (io.ReadCloser, string, error) {
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoiceAlloy,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, "", fmt.Errorf("openai TTS error: %w", err)
	}
	return resp.Body, "audio/mpeg", nil
}
