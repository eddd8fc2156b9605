// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codepod-dev/codepod/internal/chat"
	"github.com/codepod-dev/codepod/internal/claude"
	"github.com/codepod-dev/codepod/internal/config"
)

// HandleAsk sends one question and prints the answer to stdout.
func HandleAsk(args *Args) {
	if args.Query == "" {
		fmt.Fprintln(os.Stderr, "Usage: codepod ask \"question\"")
		os.Exit(1)
	}

	cfg := config.Global()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if args.JSON {
		askOnce(ctx, cfg, args)
		return
	}

	store, usageStore := buildStores(cfg)
	if usageStore != nil {
		defer usageStore.Close()
	}

	orch, saver := buildOrchestrator(cfg, args, store, usageStore)
	if saver != nil {
		defer saver.Close()
	}

	if mode := orch.Reconnect(ctx); mode == claude.ModeNone {
		fatal(claude.ErrNotConnected)
	}

	if err := orch.Send(ctx, args.Query); err != nil {
		fatal(err)
	}

	conv := orch.Conversation()
	if msg := lastAssistant(conv); msg != nil {
		fmt.Println(msg.Text())
		return
	}
	if conv.LastError() != "" {
		fatal(errors.New(conv.LastError()))
	}
}

// askOnce answers through the proxy's single-shot endpoint and prints the
// completion as JSON. Only the HTTP transport offers a non-streaming call,
// so --json requires a reachable proxy.
func askOnce(ctx context.Context, cfg *config.Config, args *Args) {
	tr := claude.NewHTTPTransportWithConfig(&claude.HTTPConfig{BaseURL: cfg.Transport.ProxyURL})

	probeCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Transport.ProbeTimeoutSecs)*time.Second)
	defer cancel()
	if !tr.Probe(probeCtx) {
		fatal(claude.ErrNotConnected)
	}

	model := args.Model
	if model == "" {
		model = cfg.DefaultModel
	}
	completion, err := tr.SendOnce(ctx, args.Query, claude.Options{
		Model:           model,
		SessionID:       args.SessionID,
		ContinueSession: args.Continue,
		Cwd:             args.Cwd,
	})
	if err != nil {
		fatal(err)
	}
	printJSON(completion)
}

// lastAssistant returns the newest assistant message, or nil.
func lastAssistant(conv *chat.Conversation) *chat.Message {
	msgs := conv.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleAssistant {
			return &msgs[i]
		}
	}
	return nil
}
