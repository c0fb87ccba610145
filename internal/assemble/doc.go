// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assemble turns a transcript plus its attached documents into the
// provider-agnostic message list sent to a model. Document content is
// injected as a fixed-format preamble on the first message; one unreadable
// document never blocks the rest of the assembly.
package assemble
