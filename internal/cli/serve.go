// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codepod-dev/codepod/internal/config"
	"github.com/codepod-dev/codepod/internal/proxy"
)

// HandleServe runs the local HTTP/SSE proxy until interrupted.
func HandleServe(args *Args) {
	cfg := config.Global()

	server := proxy.NewServer(cfg.Proxy.Port)

	// Keep the global config snapshot current while serving. The listen
	// port itself still needs a restart.
	if path, err := config.Path(); err == nil {
		watcher, werr := config.NewWatcher(path, config.DefaultWatchDebounce, func(next *config.Config) {
			config.SetGlobal(next)
			log.Printf("CONFIG_RELOADED | path=%s", path)
		})
		if werr == nil && watcher.Watch() == nil {
			defer watcher.Close()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		fmt.Fprintf(os.Stderr, "\nReceived %v, shutting down...\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			fatal(err)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			fatal(err)
		}
	}
}
