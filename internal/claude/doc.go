// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package claude reaches the external CLI through one of two transports:
// a direct in-process invocation channel that spawns the CLI itself (IPC
// mode), or an HTTP client for a local proxy that spawns the CLI and
// relays its output as an SSE stream.
//
// Bridge owns transport selection: it probes IPC first, falls back to
// HTTP, and reports not-connected without any network activity when both
// probes fail. Both transports decode their byte streams through the
// shared stream.Parser, so callers receive parsed frames regardless of
// transport.
package claude
