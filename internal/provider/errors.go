package provider

import "fmt"

// AuthError means no usable credential exists; the request was never issued.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "no API key configured"
	}
	return e.Reason
}

// TransportError is a network-level failure: no response was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError is a non-2xx response. Message carries the provider's own
// error text when the body contained one.
type ProviderError struct {
	Provider Identity
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Provider, e.Status)
}

// FormatError is a 2xx response whose body did not have the expected shape.
type FormatError struct {
	Provider Identity
	Reason   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unexpected %s response: %s", e.Provider, e.Reason)
}

// CapabilityError means a feature was requested that the active provider
// cannot serve.
type CapabilityError struct {
	Provider Identity
	Feature  string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Provider, e.Feature)
}
