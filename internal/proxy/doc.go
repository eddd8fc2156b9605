// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package proxy provides the local HTTP proxy that fronts the CLI.
//
// Endpoints:
//   - GET  /health - health check + CLI availability
//   - GET  /cli    - current CLI selection
//   - POST /cli    - switch CLI binary
//   - POST /agent  - relay a prompt; SSE stream or single JSON response
//
// The proxy spawns the selected CLI binary per request and converts its
// newline-delimited JSON output into an SSE stream (event: next per line,
// terminal event: done).
package proxy
