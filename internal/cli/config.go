// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/codepod-dev/codepod/internal/config"
)

// HandleConfig reads and writes the configuration file.
func HandleConfig(args *Args) {
	switch args.Subcommand {
	case "", "list", "show":
		listConfig(args)
	case "get":
		getConfig(args)
	case "set":
		setConfig(args)
	case "path":
		path, err := config.Path()
		if err != nil {
			fatal(err)
		}
		fmt.Println(path)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args.Subcommand)
		fmt.Fprintln(os.Stderr, "Usage: codepod config [list|get <key>|set <key> <value>|path]")
		os.Exit(1)
	}
}

func listConfig(args *Args) {
	cfg := config.Global()

	if args.JSON {
		values := map[string]interface{}{}
		for _, key := range config.Keys() {
			if v, err := cfg.Get(key); err == nil {
				values[key] = v
			}
		}
		printJSON(values)
		return
	}

	for _, key := range config.Keys() {
		value, err := cfg.Get(key)
		if err != nil {
			continue
		}
		fmt.Printf("  %-30s = %v\n", key, value)
	}
}

func getConfig(args *Args) {
	if len(args.Raw) == 0 {
		fatal(errors.New("get requires a key"))
	}
	value, err := config.Global().Get(args.Raw[0])
	if err != nil {
		fatal(err)
	}
	fmt.Printf("%v\n", value)
}

// setConfig writes one key and persists the full file.
func setConfig(args *Args) {
	if len(args.Raw) < 2 {
		fatal(errors.New("set requires a key and a value"))
	}
	key, value := args.Raw[0], args.Raw[1]

	cfg := config.Global()
	if err := cfg.Set(key, value); err != nil {
		fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}
	if err := config.Save(cfg); err != nil {
		fatal(err)
	}
	fmt.Printf("%s = %s\n", key, value)
}
