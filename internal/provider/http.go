package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// DefaultTimeout bounds each provider call. The browser original had no
// timeout at all; this is a hardening addition.
const DefaultTimeout = 30 // seconds

// errorBody matches the error envelope both provider families return:
// {"error": {"message": "..."}}. Some endpoints use a bare string instead.
type errorBody struct {
	Error json.RawMessage `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
}

// PostJSON issues one JSON POST and returns the raw response body.
// Failures map onto the error taxonomy: no response is a *TransportError,
// a non-2xx status is a *ProviderError carrying the provider's own message
// when the body held one.
func PostJSON(ctx context.Context, client *http.Client, from Identity, url string, header http.Header, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{
			Provider: from,
			Status:   resp.StatusCode,
			Message:  providerMessage(raw),
		}
	}

	return raw, nil
}

// providerMessage digs the human-readable message out of an error body.
func providerMessage(raw []byte) string {
	var envelope errorBody
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}
	var detail errorDetail
	if err := json.Unmarshal(envelope.Error, &detail); err == nil && detail.Message != "" {
		return detail.Message
	}
	var plain string
	if err := json.Unmarshal(envelope.Error, &plain); err == nil {
		return plain
	}
	return ""
}
