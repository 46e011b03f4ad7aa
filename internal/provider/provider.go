// Package provider defines the seams between the conversation core and the
// external engines it drives: chat adapters that normalize the conversation
// for a remote LLM backend, and speech engines for voice input and output.
package provider

import (
	"context"
	"io"

	"github.com/shauryaverma03/listen-chat-create/internal/chat"
)

// Identity names a chat provider family.
type Identity string

const (
	Gemini Identity = "gemini"
	OpenAI Identity = "openai"
)

// Identities lists the supported chat provider families.
func Identities() []Identity {
	return []Identity{Gemini, OpenAI}
}

// Generation knobs sent with every chat call. These are fixed policy and
// must appear verbatim in the serialized payload.
const (
	Temperature     = 0.7
	MaxOutputTokens = 800
	TopP            = 0.95
	TopK            = 40
)

// Adapter translates an ordered conversation into one provider family's wire
// shape and extracts the reply from its response shape. Serialize and
// ExtractReply are pure; Complete and DescribeImage issue the HTTP call.
type Adapter interface {
	// Name returns the provider identity.
	Name() Identity
	// Serialize renders the conversation as the provider's JSON request
	// body. pendingImage, when non-empty, attaches to the final user turn
	// only.
	Serialize(history []chat.Message, pendingImage string) ([]byte, error)
	// ExtractReply pulls the assistant text out of a raw response body.
	// A missing reply structure is a *FormatError; a present-but-empty
	// reply is valid.
	ExtractReply(body []byte) (string, error)
	// SupportsVision reports whether the provider can analyze images.
	SupportsVision() bool
	// Complete serializes the history, issues the chat call, and extracts
	// the reply.
	Complete(ctx context.Context, history []chat.Message, pendingImage string) (string, error)
	// DescribeImage issues a one-shot prompt+image call that bypasses the
	// conversation history. Providers without vision return a
	// *CapabilityError.
	DescribeImage(ctx context.Context, prompt, imageBase64 string) (string, error)
}

// RecognitionSession is one continuous speech-recognition session. Audio is
// fed in chunks; Close finalizes the session and returns the transcript.
type RecognitionSession interface {
	Write(audio []byte) error
	Close() (string, error)
}

// Recognizer opens speech-recognition sessions.
type Recognizer interface {
	// Name returns the engine identifier.
	Name() string
	// NewSession opens a recognition session. The context bounds the whole
	// session including finalization.
	NewSession(ctx context.Context) (RecognitionSession, error)
}

// Synthesizer converts text to speech.
type Synthesizer interface {
	// Name returns the engine identifier.
	Name() string
	// Synthesize converts text to audio. The returned reader streams audio
	// data (mp3/opus).
	Synthesize(ctx context.Context, text string) (io.ReadCloser, string, error) // reader, contentType, error
}
