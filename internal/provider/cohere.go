// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"encoding/json"
	"net/http"

	"github.com/jeranaias/notechat/internal/stream"
)

// =============================================================================
// COHERE ADAPTER
// =============================================================================

// CohereAdapter speaks the Cohere chat protocol. Cohere streams
// newline-delimited JSON rather than native SSE, so its framing directs
// the transport through the line reframer; frames arrive tagged "cohere".
type CohereAdapter struct {
	baseURL string
}

// NewCohereAdapter creates an adapter for a Cohere endpoint.
func NewCohereAdapter(baseURL string) *CohereAdapter {
	return &CohereAdapter{baseURL: baseURL}
}

// Family returns FamilyCohere.
func (a *CohereAdapter) Family() Family {
	return FamilyCohere
}

// Endpoint joins the base URL with the chat or models path.
func (a *CohereAdapter) Endpoint(kind EndpointKind) string {
	switch kind {
	case EndpointModels:
		return joinEndpoint(a.baseURL, "/models")
	default:
		return joinEndpoint(a.baseURL, "/chat")
	}
}

// BuildBody serializes a streaming chat request. The final user turn
// becomes the message field; earlier turns become chat_history entries
// with Cohere's USER/CHATBOT role names. Image attachments are dropped:
// the protocol is text-only, and the assembler has already counted the
// omission upstream.
func (a *CohereAdapter) BuildBody(messages []Message, p Params) ([]byte, error) {
	message := ""
	historyEnd := len(messages)
	if historyEnd > 0 && messages[historyEnd-1].Role == "user" {
		message = messages[historyEnd-1].Text
		historyEnd--
	}

	history := make([]any, 0, historyEnd)
	for _, m := range messages[:historyEnd] {
		role := "USER"
		if m.Role == "assistant" {
			role = "CHATBOT"
		}
		history = append(history, map[string]any{"role": role, "message": m.Text})
	}

	body := map[string]any{
		"model":   p.Model,
		"message": message,
		"stream":  true,
	}
	if len(history) > 0 {
		body["chat_history"] = history
	}
	if p.SystemPrompt != "" {
		body["preamble"] = p.SystemPrompt
	}
	if p.Temperature != nil {
		body["temperature"] = *p.Temperature
	}
	if p.TopP != nil {
		body["p"] = *p.TopP
	}
	if p.TopK != nil {
		body["k"] = *p.TopK
	}
	if p.MaxTokens != nil {
		body["max_tokens"] = *p.MaxTokens
	}
	if p.FrequencyPenalty != nil {
		body["frequency_penalty"] = *p.FrequencyPenalty
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return EscapeNonASCII(data), nil
}

// Headers returns bearer authentication headers.
func (a *CohereAdapter) Headers(apiKey string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
	return h
}

// Framing returns line-delimited JSON.
func (a *CohereAdapter) Framing() stream.Framing {
	return stream.FramingLines
}

// cohereFrame is one line of the streaming response.
type cohereFrame struct {
	EventType string `json:"event_type"`
	Text      string `json:"text"`
}

// NormalizeEvent parses a reframed "cohere" line: text-generation frames
// carry deltas, stream-end terminates.
func (a *CohereAdapter) NormalizeEvent(raw stream.RawEvent) []stream.Event {
	if raw.Type != "cohere" {
		return nil
	}

	var frame cohereFrame
	if err := json.Unmarshal(raw.Data, &frame); err != nil {
		return nil
	}

	switch frame.EventType {
	case "text-generation":
		if frame.Text != "" {
			return []stream.Event{stream.TextEvent(frame.Text)}
		}
	case "stream-end":
		return []stream.Event{stream.DoneEvent()}
	}
	return nil
}
