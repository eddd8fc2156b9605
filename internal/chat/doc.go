// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat owns the in-memory conversation: the ordered transcript,
// the streaming buffer being assembled for the next assistant message,
// and the orchestrator that drives a send through a transport and applies
// the resulting events.
//
// The transcript is append-only except for explicit user edit/delete of a
// single message. At most one send is in flight per conversation; the
// streaming flag is the mutual-exclusion gate.
package chat
