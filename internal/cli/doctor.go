// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/codepod-dev/codepod/internal/claude"
	"github.com/codepod-dev/codepod/internal/config"
)

// HandleDoctor diagnoses CLI binaries and transport reachability.
func HandleDoctor(args *Args) {
	cfg := config.Global()
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Transport.ProbeTimeoutSecs)*time.Second+2*time.Second)
	defer cancel()

	fmt.Println("codepod doctor")
	fmt.Println()

	// CLI binaries on PATH.
	for _, binary := range []string{"claude", "codebuddy"} {
		path, err := exec.LookPath(binary)
		if err != nil {
			fmt.Printf("  %-10s not found on PATH\n", binary)
			continue
		}
		version, err := claude.NewCLIInvoker(binary).Version(ctx)
		if err != nil {
			fmt.Printf("  %-10s %s (version check failed: %v)\n", binary, path, err)
			continue
		}
		fmt.Printf("  %-10s %s (%s)\n", binary, path, version)
	}
	fmt.Println()

	// Transport probes, each on its own line so a failed IPC probe does
	// not hide a healthy proxy.
	ipc := claude.NewIPCTransport(claude.NewCLIInvoker(cfg.DefaultCli))
	printProbe(ctx, "ipc", ipc)

	httpT := claude.NewHTTPTransportWithConfig(&claude.HTTPConfig{
		BaseURL: cfg.Transport.ProxyURL,
	})
	printProbe(ctx, "http", httpT)
	if status, err := httpT.CliStatus(ctx); err == nil {
		fmt.Printf("  proxy backing CLI: %s (available: %s)\n",
			status.CurrentCli, strings.Join(status.AvailableClis, ", "))
	}

	fmt.Println()
	mode := buildBridge(cfg).Connect(ctx)
	switch mode {
	case claude.ModeNone:
		fmt.Println("  selected transport: none")
		fmt.Println()
		fmt.Println("Claude not connected. Please start the HTTP API server or run in Tauri.")
	default:
		fmt.Printf("  selected transport: %s\n", mode)
	}
}

func printProbe(ctx context.Context, name string, t claude.Transport) {
	probeCtx, cancel := context.WithTimeout(ctx, claude.DefaultProbeTimeout)
	defer cancel()
	if t.Probe(probeCtx) {
		fmt.Printf("  %-5s transport reachable\n", name)
	} else {
		fmt.Printf("  %-5s transport unreachable\n", name)
	}
}
