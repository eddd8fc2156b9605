// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses command-line arguments and runs codepod's
// non-interactive commands.
//
// The default command starts the chat TUI; the rest are maintenance
// surfaces over the same internal packages:
//
//	codepod ask       one-shot prompt, answer to stdout
//	codepod serve     local HTTP/SSE proxy
//	codepod sessions  stored-session management
//	codepod usage     token and cost accounting
//	codepod config    configuration file management
//	codepod doctor    transport and binary diagnostics
//
// Parsing is a small hand-rolled scanner: global flags may appear
// anywhere, the first non-flag token selects the command, and the next
// selects the subcommand.
package cli
