// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"github.com/jeranaias/notechat/internal/asset"
)

// =============================================================================
// INTERMEDIATE MESSAGE FORM
// =============================================================================

// Message is the provider-agnostic intermediate form of one conversation
// turn: a role tag, text, and any attached images. Adapters translate this
// into each provider's concrete content shape (plain string or typed parts).
type Message struct {
	Role   string
	Text   string
	Images []*asset.Image
}

// NewUserMessage creates a user message.
func NewUserMessage(text string) Message {
	return Message{Role: "user", Text: text}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(text string) Message {
	return Message{Role: "assistant", Text: text}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(text string) Message {
	return Message{Role: "system", Text: text}
}
