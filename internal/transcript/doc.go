// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcript owns the branching conversation data model: entries,
// swipes (alternate regenerated answers), pending in-progress responses,
// and attached documents.
//
// Invariants: at most one entry holds a non-nil pending swipe at any
// instant; a committed swipe's selectedIndex always satisfies
// 0 <= selectedIndex < len(swipes) except transiently during generation;
// mutation helpers targeting an already-removed entry fail silently,
// because UI-driven races (double-click delete) are expected.
package transcript
