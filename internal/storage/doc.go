// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides transcript persistence for notechat.
//
// Transcripts are stored one JSON file per transcript under a base
// directory. Writes are atomic; committed swipes, swipe selection, and
// attached document references survive restarts, while in-progress
// pending responses and display handles do not.
package storage
