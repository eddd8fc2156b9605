// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the codepod TUI.
//
// The Theme type bundles every lipgloss style the chat view uses, with
// colors defined as AdaptiveColor pairs so light and dark terminals both
// render legibly. NewTheme detects the terminal color profile via
// termenv.
package styles
