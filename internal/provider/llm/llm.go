// Package llm implements the chat adapters: one per provider family.
package llm

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shauryaverma03/listen-chat-create/internal/provider"
)

// New builds the adapter for a provider identity. This is the only place
// that branches on identity; everything downstream works against
// provider.Adapter.
func New(identity provider.Identity, credential string, opts ...Option) (provider.Adapter, error) {
	switch identity {
	case provider.Gemini:
		return NewGemini(credential, opts...), nil
	case provider.OpenAI:
		return NewOpenAI(credential, opts...), nil
	default:
		return nil, fmt.Errorf("unknown chat provider %q", identity)
	}
}

// Option tweaks adapter construction.
type Option func(*options)

type options struct {
	model   string
	baseURL string
	client  *http.Client
}

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithBaseURL points the adapter at a different API host. Tests use this to
// talk to a local server.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.client = &http.Client{Timeout: d}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		client: &http.Client{Timeout: provider.DefaultTimeout * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) modelOr(fallback string) string {
	if o.model != "" {
		return o.model
	}
	return fallback
}

func (o *options) baseURLOr(fallback string) string {
	if o.baseURL != "" {
		return o.baseURL
	}
	return fallback
}
