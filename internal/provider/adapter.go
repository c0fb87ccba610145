// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/notechat/internal/stream"
)

// =============================================================================
// ADAPTER INTERFACE
// =============================================================================

// EndpointKind selects which fixed provider path an endpoint is built for.
type EndpointKind int

const (
	// EndpointChat is the streaming chat-completion endpoint.
	EndpointChat EndpointKind = iota

	// EndpointModels is the model-listing endpoint.
	EndpointModels
)

// Family identifies a wire protocol family.
type Family string

const (
	FamilyOpenAI    Family = "openai"
	FamilyAnthropic Family = "anthropic"
	FamilyCohere    Family = "cohere"
)

// Adapter turns the intermediate message list plus generation parameters
// into a concrete provider request, and parses that provider's streaming
// event shapes into normalized events.
type Adapter interface {
	// Family returns the adapter's protocol family.
	Family() Family

	// Endpoint joins the base URL with the fixed path for kind,
	// handling a possible duplicate separator.
	Endpoint(kind EndpointKind) string

	// BuildBody serializes the request payload. All non-ASCII characters
	// are escaped to \uXXXX sequences before transmission.
	BuildBody(messages []Message, p Params) ([]byte, error)

	// Headers returns the authentication and content headers.
	Headers(apiKey string) http.Header

	// Framing reports the wire format of the streaming response body.
	Framing() stream.Framing

	// NormalizeEvent implements stream.Normalizer.
	NormalizeEvent(raw stream.RawEvent) []stream.Event
}

// =============================================================================
// ADAPTER SELECTION
// =============================================================================

// knownProviders maps hostname fragments to protocol families. Endpoints
// matching no entry fall back to the OpenAI-compatible family (the custom
// deployment path).
var knownProviders = []struct {
	hostFragment string
	family       Family
}{
	{"anthropic", FamilyAnthropic},
	{"cohere", FamilyCohere},
	{"openrouter", FamilyOpenAI},
	{"openai", FamilyOpenAI},
}

// Resolve selects the adapter for an endpoint URL. Selection is a pure
// function of the endpoint over the known-provider table.
func Resolve(endpoint string) Adapter {
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)

	for _, entry := range knownProviders {
		if strings.Contains(host, entry.hostFragment) {
			switch entry.family {
			case FamilyAnthropic:
				return NewAnthropicAdapter(endpoint)
			case FamilyCohere:
				return NewCohereAdapter(endpoint)
			default:
				return NewOpenAIAdapter(endpoint)
			}
		}
	}
	return NewOpenAIAdapter(endpoint)
}

// joinEndpoint appends a fixed path to a base URL, collapsing a duplicate
// slash when the base carries a trailing separator.
func joinEndpoint(base, path string) string {
	return strings.TrimSuffix(base, "/") + path
}

// =============================================================================
// WIRE ENCODING
// =============================================================================

// EscapeNonASCII rewrites every non-ASCII rune in a marshaled JSON body to
// a \uXXXX escape sequence (surrogate pairs above U+FFFF). This defends
// against transport-layer mangling of the byte stream; the escaped body is
// byte-for-byte ASCII.
func EscapeNonASCII(in []byte) []byte {
	// Fast path: already pure ASCII
	ascii := true
	for _, b := range in {
		if b >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return in
	}

	var buf bytes.Buffer
	buf.Grow(len(in) + len(in)/4)
	for _, r := range string(in) {
		switch {
		case r < utf8.RuneSelf:
			buf.WriteByte(byte(r))
		case r > 0xFFFF:
			// Encode as a UTF-16 surrogate pair
			v := r - 0x10000
			fmt.Fprintf(&buf, `\u%04X\u%04X`, 0xD800+(v>>10), 0xDC00+(v&0x3FF))
		default:
			fmt.Fprintf(&buf, `\u%04X`, r)
		}
	}
	return buf.Bytes()
}
