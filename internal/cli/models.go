// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/codepod-dev/codepod/internal/claude"
	"github.com/codepod-dev/codepod/internal/config"
)

// HandleModels prints the model catalogue, marking the configured default.
func HandleModels(args *Args) {
	if args.JSON {
		printJSON(claude.AvailableModels)
		return
	}

	current := config.Global().DefaultModel
	for _, m := range claude.AvailableModels {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		fmt.Printf("  %s %-24s %-18s %s\n", marker, m.ID, m.Name, m.Description)
	}
}
