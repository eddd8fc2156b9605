// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/codepod-dev/codepod/internal/claude"
	"github.com/codepod-dev/codepod/internal/config"
)

// HandleCli shows or switches the CLI binary the proxy drives. Both
// operations go through the proxy's /cli endpoint, so a running proxy
// is required.
func HandleCli(args *Args) {
	cfg := config.Global()
	tr := claude.NewHTTPTransportWithConfig(&claude.HTTPConfig{BaseURL: cfg.Transport.ProxyURL})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args.Subcommand {
	case "", "status":
		status, err := tr.CliStatus(ctx)
		if err != nil {
			fatal(err)
		}
		if args.JSON {
			printJSON(status)
			return
		}
		fmt.Printf("Current CLI: %s\n", status.CurrentCli)
		if status.CliPath != "" {
			fmt.Printf("Binary:      %s\n", status.CliPath)
		}
		fmt.Printf("Available:   %s\n", strings.Join(status.AvailableClis, ", "))
	case "use", "set":
		if len(args.Raw) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: codepod cli use <claude|codebuddy>")
			os.Exit(1)
		}
		cli := claude.CliType(args.Raw[0])
		if cli != claude.CliClaude && cli != claude.CliCodeBuddy {
			fmt.Fprintf(os.Stderr, "Unknown CLI type: %s\n", args.Raw[0])
			os.Exit(1)
		}
		if err := tr.SetCli(ctx, cli); err != nil {
			fatal(err)
		}
		fmt.Printf("Proxy now drives the %s CLI.\n", cli)
	default:
		fmt.Fprintf(os.Stderr, "Unknown cli subcommand: %s\n", args.Subcommand)
		fmt.Fprintln(os.Stderr, "Usage: codepod cli [status|use <claude|codebuddy>]")
		os.Exit(1)
	}
}
