// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog resolves which models an endpoint offers and what each
// one can do. Capability inference is best-effort: both flags default to
// false when provider metadata is absent, because assuming image support
// incorrectly would corrupt requests sent to a text-only model.
package catalog
