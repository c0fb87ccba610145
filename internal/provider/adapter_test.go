// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// ADAPTER SELECTION TESTS
// =============================================================================

func TestResolveFamilies(t *testing.T) {
	cases := []struct {
		endpoint string
		want     Family
	}{
		{"https://api.anthropic.com/v1", FamilyAnthropic},
		{"https://api.cohere.ai/v1", FamilyCohere},
		{"https://openrouter.ai/api/v1", FamilyOpenAI},
		{"https://api.openai.com/v1", FamilyOpenAI},
		// Custom deployments fall back to the OpenAI-compatible family
		{"https://llm.internal.example.com/v1", FamilyOpenAI},
		{"http://localhost:8080/v1", FamilyOpenAI},
	}

	for _, tc := range cases {
		if got := Resolve(tc.endpoint).Family(); got != tc.want {
			t.Errorf("Resolve(%q).Family() = %q, want %q", tc.endpoint, got, tc.want)
		}
	}
}

// =============================================================================
// ENDPOINT JOINING TESTS
// =============================================================================

func TestEndpointJoining(t *testing.T) {
	// A trailing slash on the base must not double the separator
	withSlash := NewOpenAIAdapter("https://api.openai.com/v1/")
	if got := withSlash.Endpoint(EndpointChat); got != "https://api.openai.com/v1/chat/completions" {
		t.Errorf("Endpoint = %q", got)
	}

	without := NewOpenAIAdapter("https://api.openai.com/v1")
	if got := without.Endpoint(EndpointModels); got != "https://api.openai.com/v1/models" {
		t.Errorf("Endpoint = %q", got)
	}

	anthropic := NewAnthropicAdapter("https://api.anthropic.com/v1")
	if got := anthropic.Endpoint(EndpointChat); got != "https://api.anthropic.com/v1/messages" {
		t.Errorf("Endpoint = %q", got)
	}

	cohere := NewCohereAdapter("https://api.cohere.ai/v1")
	if got := cohere.Endpoint(EndpointChat); got != "https://api.cohere.ai/v1/chat" {
		t.Errorf("Endpoint = %q", got)
	}
}

// =============================================================================
// WIRE ENCODING TESTS
// =============================================================================

func TestEscapeNonASCII(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":"plain"}`, `{"a":"plain"}`},
		{`{"a":"héllo"}`, `{"a":"h\u00E9llo"}`},
		{`{"a":"日本"}`, `{"a":"\u65E5\u672C"}`},
		// Above U+FFFF encodes as a surrogate pair
		{`{"a":"🎉"}`, `{"a":"\uD83C\uDF89"}`},
	}

	for _, tc := range cases {
		if got := string(EscapeNonASCII([]byte(tc.in))); got != tc.want {
			t.Errorf("EscapeNonASCII(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEscapeNonASCIIOutputIsASCII(t *testing.T) {
	out := EscapeNonASCII([]byte(`{"mixed":"aé日🎉z"}`))
	for _, b := range out {
		if b >= 0x80 {
			t.Fatalf("escaped body contains non-ASCII byte %#x", b)
		}
	}
	// The escaped body must still be valid JSON carrying the original text
	var decoded map[string]string
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("escaped body no longer parses: %v", err)
	}
	if decoded["mixed"] != "aé日🎉z" {
		t.Errorf("round trip = %q", decoded["mixed"])
	}
}

// =============================================================================
// PARAMETER TABLE TESTS
// =============================================================================

func TestParamsFromMap(t *testing.T) {
	p, err := ParamsFromMap("some-model", map[string]any{
		"temperature":       0.7,
		"top_p":             0.9,
		"top_k":             int64(40),
		"max_tokens":        int64(2048),
		"frequency_penalty": 0.1,
		"reasoning_effort":  "high",
		"system_prompt":     "be terse",
	})
	if err != nil {
		t.Fatalf("ParamsFromMap failed: %v", err)
	}

	if p.Model != "some-model" {
		t.Errorf("Model = %q", p.Model)
	}
	if p.Temperature == nil || *p.Temperature != 0.7 {
		t.Error("temperature not captured")
	}
	if p.TopK == nil || *p.TopK != 40 {
		t.Error("top_k not captured")
	}
	if p.ReasoningEffort != "high" {
		t.Errorf("ReasoningEffort = %q", p.ReasoningEffort)
	}
	if p.SystemPrompt != "be terse" {
		t.Errorf("SystemPrompt = %q", p.SystemPrompt)
	}
}

func TestParamsFromMapRejectsUnknownKeys(t *testing.T) {
	_, err := ParamsFromMap("m", map[string]any{"tempurature": 0.7})
	if !errors.Is(err, ErrUnknownParam) {
		t.Errorf("unknown key error = %v, want ErrUnknownParam", err)
	}

	_, err = ParamsFromMap("m", map[string]any{"reasoning_effort": "extreme"})
	if !errors.Is(err, ErrUnknownParam) {
		t.Errorf("bad effort error = %v, want ErrUnknownParam", err)
	}
}

func TestParamsFromMapEmpty(t *testing.T) {
	p, err := ParamsFromMap("m", nil)
	if err != nil {
		t.Fatalf("ParamsFromMap(nil) failed: %v", err)
	}
	if p.Temperature != nil || p.TopP != nil || p.TopK != nil || p.MaxTokens != nil {
		t.Error("empty table should leave all pointers nil")
	}
}

// bodyMap unmarshals a built request body for assertions.
func bodyMap(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("body does not parse: %v\n%s", err, data)
	}
	return m
}

// assertNoKey fails when a key leaked into a request body.
func assertNoKey(t *testing.T, m map[string]any, key string) {
	t.Helper()
	if _, ok := m[key]; ok {
		t.Errorf("body should omit %q, got %v", key, m[key])
	}
}

// mustContain fails unless the marshaled body contains a substring.
func mustContain(t *testing.T, data []byte, sub string) {
	t.Helper()
	if !strings.Contains(string(data), sub) {
		t.Errorf("body missing %q:\n%s", sub, data)
	}
}
