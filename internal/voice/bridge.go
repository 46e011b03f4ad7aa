// Package voice couples speech input and output to the chat lifecycle. The
// two channels are independent: a continuous recognition session feeding the
// input, and a speak sink for finalized assistant text. Engine failures are
// warnings here; they never reach the chat state machine.
package voice

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/shauryaverma03/listen-chat-create/internal/provider"
)

// AudioSink receives synthesized speech for playback.
type AudioSink interface {
	PlayChunk(data []byte, contentType string) error
}

// Bridge owns the voice state for one client: whether the mic session is
// live, whether speech output is enabled, and whether an utterance is
// playing.
type Bridge struct {
	recognizer provider.Recognizer
	synth      provider.Synthesizer
	sink       AudioSink

	// onTranscript receives the finalized transcript when the mic stops.
	// The text is delivered to the input, never auto-submitted.
	onTranscript func(text string)

	mu        sync.Mutex
	listening bool
	session   provider.RecognitionSession

	enabled   bool
	speaking  bool
	utterance int
	cancel    context.CancelFunc
}

// NewBridge creates a Bridge. Any of the engines may be nil; the matching
// toggle then reports failure instead of crashing.
func NewBridge(recognizer provider.Recognizer, synth provider.Synthesizer, sink AudioSink, onTranscript func(string)) *Bridge {
	return &Bridge{
		recognizer:   recognizer,
		synth:        synth,
		sink:         sink,
		onTranscript: onTranscript,
	}
}

// ToggleMic starts or stops the continuous recognition session and reports
// the new listening state. Stopping finalizes the transcript; a non-empty
// result is handed to the input callback. An empty transcript changes
// nothing.
func (b *Bridge) ToggleMic(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.listening {
		if b.recognizer == nil {
			slog.Warn("no speech recognizer configured")
			return false
		}
		sess, err := b.recognizer.NewSession(ctx)
		if err != nil {
			slog.Warn("could not start speech recognition", "engine", b.recognizer.Name(), "error", err)
			return false
		}
		b.session = sess
		b.listening = true
		return true
	}

	sess := b.session
	b.session = nil
	b.listening = false

	text, err := sess.Close()
	if err != nil {
		slog.Warn("speech recognition failed", "engine", b.recognizer.Name(), "error", err)
		return false
	}
	if text != "" && b.onTranscript != nil {
		b.onTranscript(text)
	}
	return false
}

// PushAudio feeds a chunk into the active recognition session. Chunks that
// arrive while the mic is off are dropped.
func (b *Bridge) PushAudio(data []byte) {
	b.mu.Lock()
	sess := b.session
	b.mu.Unlock()
	if sess == nil {
		return
	}
	if err := sess.Write(data); err != nil {
		slog.Warn("speech recognition rejected audio", "error", err)
	}
}

// ToggleAudio flips speech output and reports the new state. Disabling it
// cancels any utterance already playing, not just future ones.
func (b *Bridge) ToggleAudio() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = !b.enabled
	if !b.enabled {
		b.cancelUtteranceLocked()
	}
	return b.enabled
}

// Speak queues the text for speech output. Only one utterance is in flight;
// a new one cancels the previous. A disabled output drops the text.
func (b *Bridge) Speak(text string) {
	b.mu.Lock()
	if !b.enabled || b.synth == nil || b.sink == nil || text == "" {
		b.mu.Unlock()
		return
	}
	b.cancelUtteranceLocked()

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.utterance++
	id := b.utterance
	b.speaking = true
	synth, sink := b.synth, b.sink
	b.mu.Unlock()

	go func() {
		defer b.utteranceDone(id)

		reader, contentType, err := synth.Synthesize(ctx, text)
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("speech synthesis failed", "engine", synth.Name(), "error", err)
			}
			return
		}
		defer reader.Close()

		buf := make([]byte, 4096)
		for {
			if ctx.Err() != nil {
				return
			}
			n, err := reader.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if err := sink.PlayChunk(chunk, contentType); err != nil {
					slog.Warn("audio sink rejected chunk", "error", err)
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("speech synthesis stream failed", "engine", synth.Name(), "error", err)
				}
				return
			}
		}
	}()
}

func (b *Bridge) utteranceDone(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.utterance == id {
		b.speaking = false
		if b.cancel != nil {
			b.cancel()
			b.cancel = nil
		}
	}
}

func (b *Bridge) cancelUtteranceLocked() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.speaking = false
}

// IsListening reports whether a recognition session is live.
func (b *Bridge) IsListening() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listening
}

// IsSpeaking reports whether an utterance is playing.
func (b *Bridge) IsSpeaking() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speaking
}

// AudioEnabled reports whether speech output is on.
func (b *Bridge) AudioEnabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// Close stops the mic session and cancels any utterance.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		if _, err := b.session.Close(); err != nil {
			slog.Warn("closing speech recognition failed", "error", err)
		}
		b.session = nil
	}
	b.listening = false
	b.cancelUtteranceLocked()
}
