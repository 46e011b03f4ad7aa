package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shauryaverma03/listen-chat-create/internal/chat"
	"github.com/shauryaverma03/listen-chat-create/internal/provider"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.0-flash"

	// Inline images are always sent as JPEG; the widget's file picker
	// re-encodes before upload.
	geminiImageMIME = "image/jpeg"

	// Separator between a folded system instruction and the user text.
	foldSeparator = "\n\n"
)

// geminiRequest is the generateContent request body.
type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig geminiGeneration `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGeneration struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GeminiAdapter implements provider.Adapter for the Gemini generateContent
// wire protocol. The wire has no system role, so the system instruction is
// folded into the first user turn.
type GeminiAdapter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGemini creates a Gemini chat adapter bound to one credential.
func NewGemini(apiKey string, opts ...Option) *GeminiAdapter {
	o := applyOptions(opts)
	return &GeminiAdapter{
		apiKey:  apiKey,
		model:   o.modelOr(defaultGeminiModel),
		baseURL: o.baseURLOr(defaultGeminiBaseURL),
		client:  o.client,
	}
}

func (a *GeminiAdapter) Name() provider.Identity { return provider.Gemini }

func (a *GeminiAdapter) SupportsVision() bool { return true }

// Serialize maps assistant turns to the "model" role and everything else to
// "user". The system instruction, if present, is prepended to the first user
// turn's text, exactly once. An inline JPEG part is appended for a turn's
// own image, or for pendingImage on the final user turn; at most one image
// part per turn.
func (a *GeminiAdapter) Serialize(history []chat.Message, pendingImage string) ([]byte, error) {
	var system string
	var contents []geminiContent
	folded := false

	// Locate the non-system turns up front so the last-turn check for
	// pendingImage works on wire turns, not raw history indexes.
	var turns []chat.Message
	for _, m := range history {
		if m.Role == chat.RoleSystem {
			if system == "" {
				system = m.Text
			}
			continue
		}
		turns = append(turns, m)
	}

	for i, m := range turns {
		role := "user"
		if m.Role == chat.RoleAssistant {
			role = "model"
		}

		text := m.Text
		if system != "" && !folded && m.Role == chat.RoleUser {
			text = system + foldSeparator + text
			folded = true
		}

		parts := []geminiPart{{Text: text}}
		switch {
		case m.ImageData != "":
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{
				MimeType: geminiImageMIME,
				Data:     m.ImageData,
			}})
		case pendingImage != "" && i == len(turns)-1 && m.Role == chat.RoleUser:
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{
				MimeType: geminiImageMIME,
				Data:     pendingImage,
			}})
		}

		contents = append(contents, geminiContent{Role: role, Parts: parts})
	}

	// A system instruction with no user turn to fold into still has to
	// reach the model; emit it as its own leading user turn.
	if system != "" && !folded {
		contents = append([]geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: system}},
		}}, contents...)
	}

	return json.Marshal(geminiRequest{
		Contents:         contents,
		GenerationConfig: geminiGenerationConfig(),
	})
}

func (a *GeminiAdapter) ExtractReply(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &provider.FormatError{Provider: provider.Gemini, Reason: "invalid JSON body"}
	}
	if len(resp.Candidates) == 0 {
		return "", &provider.FormatError{Provider: provider.Gemini, Reason: "no candidates"}
	}
	parts := resp.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return "", &provider.FormatError{Provider: provider.Gemini, Reason: "candidate has no parts"}
	}
	return parts[0].Text, nil
}

func (a *GeminiAdapter) Complete(ctx context.Context, history []chat.Message, pendingImage string) (string, error) {
	if a.apiKey == "" {
		return "", &provider.AuthError{}
	}
	body, err := a.Serialize(history, pendingImage)
	if err != nil {
		return "", err
	}
	raw, err := provider.PostJSON(ctx, a.client, provider.Gemini, a.endpoint(), a.header(), body)
	if err != nil {
		return "", err
	}
	return a.ExtractReply(raw)
}

// DescribeImage is the one-shot vision entry point: a single user turn with
// a text part and an inline image part. It never touches the conversation
// log; the caller appends the prompt and the reply.
func (a *GeminiAdapter) DescribeImage(ctx context.Context, prompt, imageBase64 string) (string, error) {
	if a.apiKey == "" {
		return "", &provider.AuthError{}
	}
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: prompt},
				{InlineData: &geminiInlineData{MimeType: geminiImageMIME, Data: imageBase64}},
			},
		}},
		GenerationConfig: geminiGenerationConfig(),
	})
	if err != nil {
		return "", err
	}
	raw, err := provider.PostJSON(ctx, a.client, provider.Gemini, a.endpoint(), a.header(), body)
	if err != nil {
		return "", err
	}
	return a.ExtractReply(raw)
}

func (a *GeminiAdapter) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", a.baseURL, a.model)
}

func (a *GeminiAdapter) header() http.Header {
	h := http.Header{}
	h.Set("x-goog-api-key", a.apiKey)
	return h
}

func geminiGenerationConfig() geminiGeneration {
	return geminiGeneration{
		Temperature:     provider.Temperature,
		MaxOutputTokens: provider.MaxOutputTokens,
		TopP:            provider.TopP,
		TopK:            provider.TopK,
	}
}
