// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// apiErrorBody covers the common provider error response shapes.
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// FormatHTTPError builds the user-visible message for a non-200 response:
// an HTTP status line followed by a best-effort extracted provider error
// message, sentence-cased. Unparseable bodies fall back to a truncated
// raw excerpt.
func FormatHTTPError(statusCode int, body []byte) string {
	statusLine := "HTTP " + strconv.Itoa(statusCode)
	if text := http.StatusText(statusCode); text != "" {
		statusLine += " " + text
	}

	message := extractProviderMessage(body)
	if message == "" {
		return statusLine
	}
	return statusLine + "\n" + sentenceCase(message)
}

// extractProviderMessage pulls an error message out of a provider error
// body, trying the nested {"error":{"message"}} shape first.
func extractProviderMessage(body []byte) string {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error.Message != "" {
			return parsed.Error.Message
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}

	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return ""
	}
	// Raw excerpt only; keep it short enough to display
	runes := []rune(raw)
	if len(runes) > 200 {
		raw = string(runes[:200]) + "..."
	}
	return raw
}

// sentenceCase upper-cases the first letter and terminates the message
// with a period so it reads as a dismissable sentence.
func sentenceCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r != utf8.RuneError {
		s = string(unicode.ToUpper(r)) + s[size:]
	}
	switch {
	case s == "":
	case strings.HasSuffix(s, "."), strings.HasSuffix(s, "!"), strings.HasSuffix(s, "?"):
	default:
		s += "."
	}
	return s
}
