// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider builds wire requests for each supported language-model
// provider family and parses their streaming event shapes into the
// normalized vocabulary of package stream.
//
// Three families are implemented: OpenAI-compatible chat completions
// (including OpenRouter-style variants), Anthropic messages, and Cohere
// chat. Adapter selection is a pure function of the endpoint URL over a
// known-provider table; unknown endpoints get the OpenAI-compatible
// adapter so custom deployments work out of the box.
package provider
