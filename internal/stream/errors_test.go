// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"
	"testing"
)

func TestFormatHTTPError(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   string
	}{
		{500, `{"error":{"message":"model overloaded"}}`, "HTTP 500 Internal Server Error\nModel overloaded."},
		{401, `{"message":"invalid api key"}`, "HTTP 401 Unauthorized\nInvalid api key."},
		{429, ``, "HTTP 429 Too Many Requests"},
		{503, `upstream gone`, "HTTP 503 Service Unavailable\nUpstream gone."},
		// Already punctuated messages are left alone
		{400, `{"error":{"message":"Bad request!"}}`, "HTTP 400 Bad Request\nBad request!"},
	}

	for _, tc := range cases {
		if got := FormatHTTPError(tc.status, []byte(tc.body)); got != tc.want {
			t.Errorf("FormatHTTPError(%d, %q) = %q, want %q", tc.status, tc.body, got, tc.want)
		}
	}
}

func TestFormatHTTPErrorTruncatesRawBody(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := FormatHTTPError(502, []byte(long))
	if !strings.HasSuffix(got, "...") {
		t.Errorf("long raw body should be truncated: %q", got)
	}
	if len(got) > len("HTTP 502 Bad Gateway\n")+210 {
		t.Errorf("truncated message still too long: %d bytes", len(got))
	}
}
