// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/codepod-dev/codepod/internal/config"
	uichat "github.com/codepod-dev/codepod/internal/ui/chat"
	"github.com/codepod-dev/codepod/internal/ui/styles"
)

// HandleTUI starts the interactive chat interface.
func HandleTUI(args *Args) {
	cfg := config.Global()

	store, usageStore := buildStores(cfg)
	if usageStore != nil {
		defer usageStore.Close()
	}

	orch, saver := buildOrchestrator(cfg, args, store, usageStore)
	if saver != nil {
		defer saver.Close()
	}

	// When the resume ID names a locally stored session, pre-load its
	// transcript and resume its CLI-side session instead.
	if args.SessionID != "" && store != nil {
		if sess, err := store.Load(args.SessionID); err == nil {
			orch.Conversation().Restore(sess.Messages)
			if sess.CliSessionID != "" {
				orch.Conversation().SetSessionID(sess.CliSessionID)
			}
			if sess.Model != "" && args.Model == "" {
				orch.Conversation().SetModel(sess.Model)
			}
		}
	}

	theme := styles.NewTheme()
	runner := uichat.NewRunner(orch)
	model := uichat.New(theme, orch, runner)

	program := tea.NewProgram(model, tea.WithAltScreen())
	runner.SetProgram(program)
	runner.Connect()

	// Hot-reload config edits while the TUI is open.
	if path, err := config.Path(); err == nil {
		watcher, werr := config.NewWatcher(path, config.DefaultWatchDebounce, func(next *config.Config) {
			config.SetGlobal(next)
			program.Send(uichat.StatusMsg{Text: "configuration reloaded"})
		})
		if werr == nil && watcher.Watch() == nil {
			defer watcher.Close()
		}
	}

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
