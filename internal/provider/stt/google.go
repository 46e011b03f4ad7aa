// Package stt implements the speech-to-text engines.
package stt

import (
	"bytes"
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/shauryaverma03/listen-chat-create/internal/provider"
)

// GoogleRecognizer opens recognition sessions backed by Google Cloud
// Speech-to-Text. Audio is buffered for the session's lifetime and
// recognized on finalization.
type GoogleRecognizer struct {
	language string
	encoding speechpb.RecognitionConfig_AudioEncoding
}

// NewGoogleRecognizer creates a Google recognizer. contentType selects the
// audio encoding the browser streams; language is a BCP-47 code.
func NewGoogleRecognizer(language, contentType string) *GoogleRecognizer {
	encoding := speechpb.RecognitionConfig_WEBM_OPUS
	switch contentType {
	case "audio/wav":
		encoding = speechpb.RecognitionConfig_LINEAR16
	case "audio/mp3", "audio/mpeg":
		encoding = speechpb.RecognitionConfig_MP3
	case "audio/ogg":
		encoding = speechpb.RecognitionConfig_OGG_OPUS
	}
	if language == "" {
		language = "en-US"
	}
	return &GoogleRecognizer{language: language, encoding: encoding}
}

func (r *GoogleRecognizer) Name() string { return "google" }

func (r *GoogleRecognizer) NewSession(ctx context.Context) (provider.RecognitionSession, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google STT client error: %w", err)
	}
	return &googleSession{
		ctx:        ctx,
		client:     client,
		recognizer: r,
	}, nil
}

type googleSession struct {
	ctx        context.Context
	client     *speech.Client
	recognizer *GoogleRecognizer
	buf        bytes.Buffer
}

func (s *googleSession) Write(audio []byte) error {
	_, err := s.buf.Write(audio)
	return err
}

func (s *googleSession) Close() (string, error) {
	defer s.client.Close()

	if s.buf.Len() == 0 {
		return "", nil
	}

	resp, err := s.client.Recognize(s.ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        s.recognizer.encoding,
			SampleRateHertz: 16000,
			LanguageCode:    s.recognizer.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{
				Content: s.buf.Bytes(),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google STT recognize error: %w", err)
	}

	var out bytes.Buffer
	for _, result := range resp.Results {
		for _, alt := range result.Alternatives {
			out.WriteString(alt.Transcript)
		}
	}
	return out.String(), nil
}
