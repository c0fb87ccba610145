// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat drives one conversation end to end: it assembles context,
// dispatches the provider request through the streaming transport, and
// folds the normalized events back into the transcript.
//
// One request at a time per engine. The transcript's working flag is the
// single-flight lock; Send and Regenerate return ErrBusy instead of
// interleaving, and the flag is only released by the stream's close event.
package chat
