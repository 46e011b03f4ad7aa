package llm

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shauryaverma03/listen-chat-create/internal/chat"
	"github.com/shauryaverma03/listen-chat-create/internal/provider"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o"
)

// openaiRequest is the chat-completions request body. The wire has no
// top-k knob; the other generation constants map onto their
// provider-specific field names.
type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
	TopP        float64         `json:"top_p"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAIAdapter implements provider.Adapter for the chat-completions wire
// protocol. Roles pass through unchanged; system turns are native. Inline
// images are not supported: a submit carrying one is rejected with a
// capability error rather than silently dropped, so no caller can believe
// an image was analyzed when it never left the process.
type OpenAIAdapter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAI creates an OpenAI chat adapter bound to one credential.
func NewOpenAI(apiKey string, opts ...Option) *OpenAIAdapter {
	o := applyOptions(opts)
	return &OpenAIAdapter{
		apiKey:  apiKey,
		model:   o.modelOr(defaultOpenAIModel),
		baseURL: o.baseURLOr(defaultOpenAIBaseURL),
		client:  o.client,
	}
}

func (a *OpenAIAdapter) Name() provider.Identity { return provider.OpenAI }

func (a *OpenAIAdapter) SupportsVision() bool { return false }

func (a *OpenAIAdapter) Serialize(history []chat.Message, pendingImage string) ([]byte, error) {
	if pendingImage != "" {
		return nil, &provider.CapabilityError{Provider: provider.OpenAI, Feature: "image attachments"}
	}
	messages := make([]openaiMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, openaiMessage{
			Role:    string(m.Role),
			Content: m.Text,
		})
	}
	return json.Marshal(openaiRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: provider.Temperature,
		MaxTokens:   provider.MaxOutputTokens,
		TopP:        provider.TopP,
	})
}

func (a *OpenAIAdapter) ExtractReply(body []byte) (string, error) {
	var resp openaiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &provider.FormatError{Provider: provider.OpenAI, Reason: "invalid JSON body"}
	}
	if len(resp.Choices) == 0 {
		return "", &provider.FormatError{Provider: provider.OpenAI, Reason: "no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *OpenAIAdapter) Complete(ctx context.Context, history []chat.Message, pendingImage string) (string, error) {
	if a.apiKey == "" {
		return "", &provider.AuthError{}
	}
	body, err := a.Serialize(history, pendingImage)
	if err != nil {
		return "", err
	}
	raw, err := provider.PostJSON(ctx, a.client, provider.OpenAI, a.baseURL+"/chat/completions", a.header(), body)
	if err != nil {
		return "", err
	}
	return a.ExtractReply(raw)
}

// DescribeImage always fails: this provider family has no one-shot vision
// call in this design.
func (a *OpenAIAdapter) DescribeImage(_ context.Context, _, _ string) (string, error) {
	return "", &provider.CapabilityError{Provider: provider.OpenAI, Feature: "image analysis"}
}

func (a *OpenAIAdapter) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+a.apiKey)
	return h
}
