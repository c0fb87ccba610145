// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/jeranaias/notechat/internal/asset"
	"github.com/jeranaias/notechat/internal/stream"
)

// =============================================================================
// OPENAI-COMPATIBLE ADAPTER
// =============================================================================

// OpenAIAdapter speaks the OpenAI chat-completions protocol, which is also
// the lingua franca of OpenRouter and most custom deployments.
type OpenAIAdapter struct {
	baseURL string

	// nestedReasoning selects the OpenRouter-style reasoning parameter
	// shape ({"reasoning":{"effort":...}}) over the flat reasoning_effort
	// field used by vanilla OpenAI-compatible servers.
	nestedReasoning bool
}

// NewOpenAIAdapter creates an adapter for an OpenAI-compatible endpoint.
func NewOpenAIAdapter(baseURL string) *OpenAIAdapter {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return &OpenAIAdapter{
		baseURL:         baseURL,
		nestedReasoning: strings.Contains(strings.ToLower(host), "openrouter"),
	}
}

// Family returns FamilyOpenAI.
func (a *OpenAIAdapter) Family() Family {
	return FamilyOpenAI
}

// Endpoint joins the base URL with the chat-completions or models path.
func (a *OpenAIAdapter) Endpoint(kind EndpointKind) string {
	switch kind {
	case EndpointModels:
		return joinEndpoint(a.baseURL, "/models")
	default:
		return joinEndpoint(a.baseURL, "/chat/completions")
	}
}

// BuildBody serializes a streaming chat-completions request. Unset
// parameters are omitted, never sent as null.
func (a *OpenAIAdapter) BuildBody(messages []Message, p Params) ([]byte, error) {
	wire := make([]any, 0, len(messages)+1)
	if p.SystemPrompt != "" {
		wire = append(wire, map[string]any{"role": "system", "content": p.SystemPrompt})
	}
	for _, m := range messages {
		wire = append(wire, a.encodeMessage(m))
	}

	body := map[string]any{
		"model":    p.Model,
		"messages": wire,
		"stream":   true,
	}
	if p.Temperature != nil {
		body["temperature"] = *p.Temperature
	}
	if p.TopP != nil {
		body["top_p"] = *p.TopP
	}
	if p.TopK != nil {
		body["top_k"] = *p.TopK
	}
	if p.MaxTokens != nil {
		body["max_tokens"] = *p.MaxTokens
	}
	if p.FrequencyPenalty != nil {
		body["frequency_penalty"] = *p.FrequencyPenalty
	}
	if p.ReasoningEffort != "" {
		if a.nestedReasoning {
			body["reasoning"] = map[string]any{"effort": p.ReasoningEffort}
		} else {
			body["reasoning_effort"] = p.ReasoningEffort
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return EscapeNonASCII(data), nil
}

// encodeMessage encodes one message: a plain content string when there are
// no images, typed content parts otherwise.
func (a *OpenAIAdapter) encodeMessage(m Message) map[string]any {
	if len(m.Images) == 0 {
		return map[string]any{"role": m.Role, "content": m.Text}
	}

	parts := make([]any, 0, len(m.Images)+1)
	parts = append(parts, map[string]any{"type": "text", "text": m.Text})
	for _, img := range m.Images {
		parts = append(parts, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": asset.EncodeDataURL(img)},
		})
	}
	return map[string]any{"role": m.Role, "content": parts}
}

// Headers returns bearer authentication headers.
func (a *OpenAIAdapter) Headers(apiKey string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
	return h
}

// Framing returns native SSE.
func (a *OpenAIAdapter) Framing() stream.Framing {
	return stream.FramingSSE
}

// openAIChunk is the streaming delta shape.
type openAIChunk struct {
	Object  string `json:"object"`
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning"`
			Images    []struct {
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NormalizeEvent parses a chat.completion.chunk frame. Malformed or
// unrecognized frames yield nil.
func (a *OpenAIAdapter) NormalizeEvent(raw stream.RawEvent) []stream.Event {
	var chunk openAIChunk
	if err := json.Unmarshal(raw.Data, &chunk); err != nil {
		return nil
	}
	if chunk.Object != "" && chunk.Object != "chat.completion.chunk" && chunk.Object != "completion.chunk" {
		return nil
	}
	if len(chunk.Choices) == 0 {
		return nil
	}

	delta := chunk.Choices[0].Delta
	var events []stream.Event
	if delta.Reasoning != "" {
		events = append(events, stream.ReasoningEvent(delta.Reasoning))
	}
	if delta.Content != "" {
		events = append(events, stream.TextEvent(delta.Content))
	}
	for _, img := range delta.Images {
		if img.ImageURL.URL != "" {
			events = append(events, stream.ImageEvent(img.ImageURL.URL))
		}
	}
	return events
}
