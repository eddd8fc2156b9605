// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - argument parsing and command routing for codepod.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdServe
	CmdSessions
	CmdUsage
	CmdConfig
	CmdModels
	CmdCli
	CmdDoctor
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Model   string
	Cwd     string
	JSON    bool
	Verbose bool

	// Session resume
	Continue  bool
	SessionID string

	// Command-specific
	Query      string
	Subcommand string

	// Raw args remaining after flag parsing
	Raw []string
}

const usageText = `codepod - terminal chat for the Claude and CodeBuddy CLIs

Codepod streams coding-agent sessions into your terminal. It talks to
the CLI directly when it can, and falls back to a local HTTP proxy.

Usage:
  codepod                      Start the chat TUI (default)
  codepod ask "question"       One-shot question, answer to stdout
  codepod serve                Run the local HTTP/SSE proxy
  codepod sessions [cmd]       Saved-session management
  codepod usage [cmd]          Token and cost accounting
  codepod config [cmd]         Configuration management
  codepod models               List selectable models
  codepod cli [cmd]            Show or switch the proxy's backing CLI
  codepod doctor               Diagnose transports and CLI binaries
  codepod version              Show version
  codepod help                 Show this help

Flags:
  --model <name>     Model to use for this run
  --cwd <dir>        Project directory forwarded to the CLI
  --continue         Continue the most recent CLI session
  --resume <id>      Resume a specific CLI session
  --json             Machine-readable output where supported
  --verbose          Verbose diagnostics

Subcommands:
  sessions list | search <q> | show <id> | delete <id> | export <id> | clear
  usage    total | daily | models | export | clear
  config   list | get <key> | set <key> <value> | path
  cli      status | use <claude|codebuddy>

Environment:
  CODEPOD_MODEL, CODEPOD_CLI, CODEPOD_PROXY_URL, CODEPOD_PROXY_PORT,
  CODEPOD_TRANSPORT, CODEPOD_THEME override the config file.
`

// Parse reads os.Args and returns the command plus its arguments.
func Parse() (Command, *Args) {
	return parseArgs(os.Args[1:])
}

// parseArgs is the testable core of Parse.
func parseArgs(argv []string) (Command, *Args) {
	args := &Args{}

	// Strip global flags first; what remains selects the command.
	var rest []string
	i := 0
	for i < len(argv) {
		arg := argv[i]
		switch {
		case arg == "--model" || arg == "-m":
			if i+1 < len(argv) {
				args.Model = argv[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--model="):
			args.Model = strings.TrimPrefix(arg, "--model=")
		case arg == "--cwd":
			if i+1 < len(argv) {
				args.Cwd = argv[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--cwd="):
			args.Cwd = strings.TrimPrefix(arg, "--cwd=")
		case arg == "--resume":
			if i+1 < len(argv) {
				args.SessionID = argv[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--resume="):
			args.SessionID = strings.TrimPrefix(arg, "--resume=")
		case arg == "--continue" || arg == "-c":
			args.Continue = true
		case arg == "--json":
			args.JSON = true
		case arg == "--verbose" || arg == "-v":
			args.Verbose = true
		case arg == "--help" || arg == "-h":
			return CmdHelp, args
		case arg == "--version":
			return CmdVersion, args
		default:
			rest = append(rest, arg)
		}
		i++
	}

	if len(rest) == 0 {
		return CmdTUI, args
	}

	cmd := rest[0]
	rest = rest[1:]
	if len(rest) > 0 {
		args.Subcommand = rest[0]
		args.Raw = rest[1:]
	}

	switch cmd {
	case "ask":
		// Everything after "ask" is the question.
		args.Query = strings.Join(append([]string{args.Subcommand}, args.Raw...), " ")
		args.Query = strings.TrimSpace(args.Query)
		return CmdAsk, args
	case "serve", "proxy":
		return CmdServe, args
	case "sessions", "session":
		return CmdSessions, args
	case "usage":
		return CmdUsage, args
	case "config":
		return CmdConfig, args
	case "models":
		return CmdModels, args
	case "cli":
		return CmdCli, args
	case "doctor":
		return CmdDoctor, args
	case "version":
		return CmdVersion, args
	case "help":
		return CmdHelp, args
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		return CmdHelp, args
	}
}

// PrintUsage writes the top-level help text.
func PrintUsage() {
	fmt.Print(usageText)
}

// PrintVersion writes version information.
func PrintVersion() {
	fmt.Printf("codepod %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
