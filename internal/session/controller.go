// Package session drives the request lifecycle for one conversation: it is
// the only writer of the conversation log and the only component that talks
// to the chat adapter.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shauryaverma03/listen-chat-create/internal/chat"
	"github.com/shauryaverma03/listen-chat-create/internal/provider"
	"github.com/shauryaverma03/listen-chat-create/internal/provider/llm"
)

// ErrBusy is returned when a submit arrives while a request is in flight.
var ErrBusy = errors.New("a request is already in flight")

// State is the controller's lifecycle state. Failure is transient: the
// controller surfaces the message and returns to idle on its own.
type State int

const (
	StateIdle State = iota
	StateSending
)

// AdapterFactory builds a chat adapter for an identity/credential pair.
type AdapterFactory func(identity provider.Identity, credential string) (provider.Adapter, error)

// Controller owns the conversation log and the provider session, and runs
// the Idle -> Sending -> Idle state machine. One outbound call at a time;
// switching providers mid-flight cancels the call and discards its result.
type Controller struct {
	mu         sync.Mutex
	log        *chat.Log
	adapter    provider.Adapter
	generation int
	cancel     context.CancelFunc
	state      State
	lastErr    string

	speak      func(text string)
	newAdapter AdapterFactory
	timeout    time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithSpeaker wires the voice bridge's speak operation. It is invoked
// fire-and-forget after each successful reply.
func WithSpeaker(speak func(text string)) Option {
	return func(c *Controller) { c.speak = speak }
}

// WithAdapterFactory replaces the default adapter factory. Tests use this to
// inject scripted adapters.
func WithAdapterFactory(f AdapterFactory) Option {
	return func(c *Controller) { c.newAdapter = f }
}

// WithTimeout bounds each outbound call.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// NewController creates a Controller over the given log. No provider session
// exists until SetProvider is called.
func NewController(log *chat.Log, opts ...Option) *Controller {
	c := &Controller{
		log:     log,
		timeout: provider.DefaultTimeout * time.Second,
		newAdapter: func(identity provider.Identity, credential string) (provider.Adapter, error) {
			return llm.New(identity, credential)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetProvider swaps the provider session. Any in-flight request is canceled
// and its result, should the transport still deliver one, is discarded.
func (c *Controller) SetProvider(identity provider.Identity, credential string) error {
	if credential == "" {
		return &provider.AuthError{Reason: "an API key is required"}
	}
	adapter, err := c.newAdapter(identity, credential)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	c.adapter = adapter
	c.state = StateIdle
	c.lastErr = ""
	return nil
}

// Submit runs one send: append the user turn, issue exactly one outbound
// call, append the reply. It blocks until the call resolves. No implicit
// retries; a failure surfaces a message and the state returns to idle.
func (c *Controller) Submit(ctx context.Context, text, image string) error {
	c.mu.Lock()
	if c.adapter == nil {
		err := &provider.AuthError{Reason: "set a provider and API key first"}
		c.lastErr = err.Error()
		c.mu.Unlock()
		return err
	}
	if c.state == StateSending {
		c.mu.Unlock()
		return ErrBusy
	}
	if image != "" && !c.adapter.SupportsVision() {
		err := &provider.CapabilityError{Provider: c.adapter.Name(), Feature: "image attachments"}
		c.lastErr = err.Error()
		c.mu.Unlock()
		return err
	}
	if _, err := c.log.AppendUser(text, image); err != nil {
		c.mu.Unlock()
		return err
	}

	c.state = StateSending
	c.lastErr = ""
	gen := c.generation
	adapter := c.adapter

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	// The image rides the just-appended user message; it is consumed by
	// this one call and never staged for a second send.
	var reply string
	var err error
	vision := image != ""
	if vision {
		reply, err = adapter.DescribeImage(cctx, text, image)
	} else {
		reply, err = adapter.Complete(cctx, c.log.Messages(), "")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		// The session was swapped while this call was in flight; the
		// result belongs to a conversation that no longer exists.
		slog.Info("discarding stale provider response", "provider", adapter.Name())
		return nil
	}
	c.state = StateIdle
	c.cancel = nil
	if err != nil {
		c.lastErr = humanize(err, vision)
		slog.Error("provider call failed", "provider", adapter.Name(), "vision", vision, "error", err)
		return err
	}
	c.log.AppendAssistant(reply)
	if c.speak != nil && reply != "" {
		go c.speak(reply)
	}
	return nil
}

// Snapshot is the state exposed to UI collaborators.
type Snapshot struct {
	Messages  []chat.Message
	Sending   bool
	LastError string
	Provider  provider.Identity
}

// Snapshot returns the UI-facing view of the controller.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Messages:  c.log.Visible(),
		Sending:   c.state == StateSending,
		LastError: c.lastErr,
	}
	if c.adapter != nil {
		s.Provider = c.adapter.Name()
	}
	return s
}

// Close cancels any in-flight request.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	c.state = StateIdle
}

// humanize converts a taxonomy error into the single user-visible string.
// The provider's own message wins when it sent one; otherwise the fallback
// names the call that failed.
func humanize(err error, vision bool) string {
	var pe *provider.ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	var ce *provider.CapabilityError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	var ae *provider.AuthError
	if errors.As(err, &ae) {
		return ae.Error()
	}
	if vision {
		return "Could not analyze the image. Please try again."
	}
	return "Could not get a response. Please try again."
}
