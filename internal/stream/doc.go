// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream parses the CLI's streamed output into typed frames and
// interprets those frames as semantic conversation events.
//
// The wire format is newline-delimited JSON, optionally wrapped in SSE
// framing (event:/data: lines) when it arrives through the HTTP proxy.
// Parser reassembles raw chunks into Envelope frames; Interpret maps each
// frame to one of a fixed set of events (session start, text delta, full
// message, turn completion). Malformed lines are dropped, never surfaced:
// the upstream CLI does not guarantee line-by-line valid JSON.
package stream
