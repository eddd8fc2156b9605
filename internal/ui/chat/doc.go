// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat view for codepod.
//
// The Model owns the textarea, viewport, and spinner; it renders the
// orchestrator's conversation and delegates sends to a Runner that
// executes turns in a goroutine and reports back through program
// messages. While a turn streams, the view refreshes on a capped tick
// so token bursts don't cause flicker.
package chat
