// codepod - terminal chat for the Claude and CodeBuddy CLIs.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/codepod-dev/codepod/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdTUI:
		// The TUI needs a real terminal; piped invocations get pointed
		// at the one-shot command instead of a garbled alt screen.
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "codepod: stdout is not a terminal; use `codepod ask \"question\"` for scripted output")
			os.Exit(1)
		}
		cli.HandleTUI(args)
	case cli.CmdAsk:
		cli.HandleAsk(args)
	case cli.CmdServe:
		cli.HandleServe(args)
	case cli.CmdSessions:
		cli.HandleSessions(args)
	case cli.CmdUsage:
		cli.HandleUsage(args)
	case cli.CmdConfig:
		cli.HandleConfig(args)
	case cli.CmdModels:
		cli.HandleModels(args)
	case cli.CmdCli:
		cli.HandleCli(args)
	case cli.CmdDoctor:
		cli.HandleDoctor(args)
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.PrintUsage()
	}
}
