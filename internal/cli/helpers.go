// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/codepod-dev/codepod/internal/chat"
	"github.com/codepod-dev/codepod/internal/claude"
	"github.com/codepod-dev/codepod/internal/config"
	"github.com/codepod-dev/codepod/internal/session"
	"github.com/codepod-dev/codepod/internal/usage"
)

// =============================================================================
// WIRING HELPERS
// =============================================================================

// buildBridge assembles the transport bridge from configuration. The
// prefer setting drops the transport it excludes entirely, so the probe
// order never routes around an explicit choice.
func buildBridge(cfg *config.Config) *claude.Bridge {
	var ipc, httpT claude.Transport

	if cfg.Transport.Prefer != "http" {
		ipc = claude.NewIPCTransport(claude.NewCLIInvoker(cfg.DefaultCli))
	}
	if cfg.Transport.Prefer != "ipc" {
		httpT = claude.NewHTTPTransportWithConfig(&claude.HTTPConfig{
			BaseURL: cfg.Transport.ProxyURL,
		})
	}
	return claude.NewBridge(ipc, httpT)
}

// buildStores opens the session store and, when enabled, the usage store.
// A usage store that fails to open is reported and skipped; accounting is
// never worth refusing to chat over.
func buildStores(cfg *config.Config) (*session.Store, *usage.Store) {
	store, err := openSessionStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: session persistence disabled: %v\n", err)
		store = nil
	}

	var usageStore *usage.Store
	if cfg.Usage.Enabled {
		usageStore, err = openUsageStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: usage recording disabled: %v\n", err)
			usageStore = nil
		}
	}
	return store, usageStore
}

func openSessionStore(cfg *config.Config) (*session.Store, error) {
	var store *session.Store
	var err error
	if cfg.Session.Dir != "" {
		store, err = session.NewStoreWithDir(cfg.Session.Dir)
	} else {
		store, err = session.NewStore()
	}
	if err != nil {
		return nil, err
	}
	store.MaxSessions = cfg.Session.MaxSessions
	return store, nil
}

func openUsageStore(cfg *config.Config) (*usage.Store, error) {
	if cfg.Usage.DBPath != "" {
		return usage.NewStoreWithPath(cfg.Usage.DBPath)
	}
	return usage.NewStore()
}

// buildOrchestrator wires a conversation, bridge, usage recorder, and
// debounced session saver into an orchestrator ready to send.
func buildOrchestrator(cfg *config.Config, args *Args, store *session.Store, usageStore *usage.Store) (*chat.Orchestrator, *session.Saver) {
	conv := chat.NewConversation()
	if args.Model != "" {
		conv.SetModel(args.Model)
	} else {
		conv.SetModel(cfg.DefaultModel)
	}

	var saver *session.Saver
	var persist chat.Persister
	if store != nil {
		sess := &session.Session{
			ProjectPath: args.Cwd,
			Model:       conv.Model(),
			CreatedAt:   time.Now(),
		}
		saver = session.NewSaver(store, func() *session.Session {
			sess.Model = conv.Model()
			sess.CliSessionID = conv.SessionID()
			sess.Messages = conv.Messages()
			return sess
		}, time.Duration(cfg.Session.AutosaveDebounceMs)*time.Millisecond)
		persist = saver
	}

	var recorder chat.UsageRecorder
	if usageStore != nil {
		recorder = usageStore
	}

	orch := chat.NewOrchestrator(conv, buildBridge(cfg), recorder, persist)
	orch.Cwd = args.Cwd
	orch.Continue = args.Continue
	if args.SessionID != "" {
		conv.SetSessionID(args.SessionID)
	}
	return orch, saver
}

// fatal prints an error and exits non-zero.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
