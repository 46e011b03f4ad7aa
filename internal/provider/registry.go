package provider

import (
	"fmt"
	"sync"
)

// Registry manages the available speech engines. Chat adapters are not
// registered here: they are bound to a session with a per-session
// credential and built through the adapter factory instead.
type Registry struct {
	mu          sync.RWMutex
	recognizers map[string]Recognizer
	synths      map[string]Synthesizer
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		recognizers: make(map[string]Recognizer),
		synths:      make(map[string]Synthesizer),
	}
}

// RegisterRecognizer registers a speech-to-text engine.
func (r *Registry) RegisterRecognizer(p Recognizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizers[p.Name()] = p
}

// RegisterSynthesizer registers a text-to-speech engine.
func (r *Registry) RegisterSynthesizer(p Synthesizer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synths[p.Name()] = p
}

// Recognizer returns the named speech-to-text engine.
func (r *Registry) Recognizer(name string) (Recognizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.recognizers[name]
	if !ok {
		return nil, fmt.Errorf("speech recognizer %q not found", name)
	}
	return p, nil
}

// Synthesizer returns the named text-to-speech engine.
func (r *Registry) Synthesizer(name string) (Synthesizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.synths[name]
	if !ok {
		return nil, fmt.Errorf("speech synthesizer %q not found", name)
	}
	return p, nil
}

// ListRecognizers returns names of all registered speech-to-text engines.
func (r *Registry) ListRecognizers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.recognizers))
	for name := range r.recognizers {
		names = append(names, name)
	}
	return names
}

// ListSynthesizers returns names of all registered text-to-speech engines.
func (r *Registry) ListSynthesizers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.synths))
	for name := range r.synths {
		names = append(names, name)
	}
	return names
}
