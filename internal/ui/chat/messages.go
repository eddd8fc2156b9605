// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/codepod-dev/codepod/internal/claude"
)

// =============================================================================
// BUBBLE TEA MESSAGES
// =============================================================================

// ConnectedMsg reports the transport mode after a bridge probe.
type ConnectedMsg struct {
	Mode claude.Mode
}

// TurnStartedMsg signals that a send has begun streaming.
type TurnStartedMsg struct {
	StartTime time.Time
}

// TurnDoneMsg signals that a send finished (successfully, canceled, or
// with the error already recorded in the conversation).
type TurnDoneMsg struct {
	Err error
}

// renderTickMsg drives viewport refreshes while a turn is streaming.
type renderTickMsg time.Time

// StatusMsg displays a transient status line message.
type StatusMsg struct {
	Text string
}
