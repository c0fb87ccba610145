// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream executes streaming HTTP requests against language-model
// providers and emits a normalized event vocabulary.
//
// The transport pipes the response body through a Server-Sent-Events parser
// (line-delimited JSON wire formats are reframed into synthetic SSE frames
// first), translates provider frames through a Normalizer into text,
// reasoning, image, and status events, and guarantees eventual terminal
// emission: exactly one of done, error, or abort, always followed by
// exactly one close.
//
// STREAMING: Robust SSE parsing with error handling; malformed chunks are
// dropped per-chunk so one bad frame cannot kill an otherwise-healthy
// stream.
package stream
