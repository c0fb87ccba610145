// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/jeranaias/notechat/internal/stream"
)

// anthropicVersion is the pinned API version header value.
const anthropicVersion = "2023-06-01"

// defaultAnthropicMaxTokens applies when the caller sets no limit; the
// Anthropic messages endpoint requires max_tokens.
const defaultAnthropicMaxTokens = 4096

// =============================================================================
// ANTHROPIC ADAPTER
// =============================================================================

// AnthropicAdapter speaks the Anthropic messages protocol with its
// content-block streaming events.
type AnthropicAdapter struct {
	baseURL string
}

// NewAnthropicAdapter creates an adapter for an Anthropic endpoint.
func NewAnthropicAdapter(baseURL string) *AnthropicAdapter {
	return &AnthropicAdapter{baseURL: baseURL}
}

// Family returns FamilyAnthropic.
func (a *AnthropicAdapter) Family() Family {
	return FamilyAnthropic
}

// Endpoint joins the base URL with the messages or models path.
func (a *AnthropicAdapter) Endpoint(kind EndpointKind) string {
	switch kind {
	case EndpointModels:
		return joinEndpoint(a.baseURL, "/models")
	default:
		return joinEndpoint(a.baseURL, "/messages")
	}
}

// BuildBody serializes a streaming messages request. The system prompt is
// a top-level field; message content uses typed blocks when images are
// attached. Parameters the protocol does not recognize are omitted.
func (a *AnthropicAdapter) BuildBody(messages []Message, p Params) ([]byte, error) {
	wire := make([]any, 0, len(messages))
	for _, m := range messages {
		// The messages endpoint accepts only user/assistant roles.
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		wire = append(wire, a.encodeMessage(m))
	}

	maxTokens := defaultAnthropicMaxTokens
	if p.MaxTokens != nil {
		maxTokens = *p.MaxTokens
	}

	body := map[string]any{
		"model":      p.Model,
		"messages":   wire,
		"max_tokens": maxTokens,
		"stream":     true,
	}
	if p.SystemPrompt != "" {
		body["system"] = p.SystemPrompt
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

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return EscapeNonASCII(data), nil
}

// encodeMessage encodes one message as content blocks.
func (a *AnthropicAdapter) encodeMessage(m Message) map[string]any {
	if len(m.Images) == 0 {
		return map[string]any{"role": m.Role, "content": m.Text}
	}

	blocks := make([]any, 0, len(m.Images)+1)
	blocks = append(blocks, map[string]any{"type": "text", "text": m.Text})
	for _, img := range m.Images {
		blocks = append(blocks, map[string]any{
			"type": "image",
			"source": map[string]any{
				"type":       "base64",
				"media_type": img.MIME,
				"data":       base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	return map[string]any{"role": m.Role, "content": blocks}
}

// Headers returns x-api-key authentication plus the version headers.
func (a *AnthropicAdapter) Headers(apiKey string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("anthropic-version", anthropicVersion)
	h.Set("anthropic-beta", "messages-2023-12-15")
	if apiKey != "" {
		h.Set("x-api-key", apiKey)
	}
	return h
}

// Framing returns native SSE.
func (a *AnthropicAdapter) Framing() stream.Framing {
	return stream.FramingSSE
}

// anthropicFrame covers the streaming event shapes we consume.
type anthropicFrame struct {
	Type         string `json:"type"`
	ContentBlock struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content_block"`
	Delta struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Thinking string `json:"thinking"`
	} `json:"delta"`
}

// NormalizeEvent parses content_block_start/content_block_delta frames.
// The event type arrives both as the SSE event name and inside the data;
// either is accepted.
func (a *AnthropicAdapter) NormalizeEvent(raw stream.RawEvent) []stream.Event {
	var frame anthropicFrame
	if err := json.Unmarshal(raw.Data, &frame); err != nil {
		return nil
	}

	eventType := raw.Type
	if eventType == "" {
		eventType = frame.Type
	}

	switch eventType {
	case "content_block_start":
		if frame.ContentBlock.Type == "text" && frame.ContentBlock.Text != "" {
			return []stream.Event{stream.TextEvent(frame.ContentBlock.Text)}
		}
	case "content_block_delta":
		switch frame.Delta.Type {
		case "text_delta":
			if frame.Delta.Text != "" {
				return []stream.Event{stream.TextEvent(frame.Delta.Text)}
			}
		case "thinking_delta":
			if frame.Delta.Thinking != "" {
				return []stream.Event{stream.ReasoningEvent(frame.Delta.Thinking)}
			}
		}
	case "message_stop":
		return []stream.Event{stream.DoneEvent()}
	}
	return nil
}
