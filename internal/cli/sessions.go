// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/codepod-dev/codepod/internal/config"
	"github.com/codepod-dev/codepod/internal/session"
	"github.com/codepod-dev/codepod/internal/util"
)

// HandleSessions manages stored sessions.
func HandleSessions(args *Args) {
	store, err := openSessionStore(config.Global())
	if err != nil {
		fatal(err)
	}

	switch args.Subcommand {
	case "", "list":
		listSessions(store, args)
	case "search":
		searchSessions(store, args)
	case "show":
		showSession(store, args)
	case "delete", "rm":
		deleteSession(store, args)
	case "export":
		exportSession(store, args)
	case "clear":
		if err := store.Clear(); err != nil {
			fatal(err)
		}
		fmt.Println("All sessions deleted.")
	default:
		fmt.Fprintf(os.Stderr, "Unknown sessions subcommand: %s\n", args.Subcommand)
		fmt.Fprintln(os.Stderr, "Usage: codepod sessions [list|search <q>|show <id>|delete <id>|export <id>|clear]")
		os.Exit(1)
	}
}

// listSessions prints stored sessions grouped by age.
func listSessions(store *session.Store, args *Args) {
	metas, err := store.List()
	if err != nil {
		fatal(err)
	}

	if args.JSON {
		printJSON(metas)
		return
	}
	if len(metas) == 0 {
		fmt.Println("No saved sessions.")
		return
	}

	for _, group := range session.GroupByAge(metas, time.Now()) {
		fmt.Printf("%s\n", group.Label)
		for _, meta := range group.Sessions {
			printMeta(meta)
		}
		fmt.Println()
	}
}

// searchSessions matches titles first, then message bodies.
func searchSessions(store *session.Store, args *Args) {
	if len(args.Raw) == 0 {
		fatal(errors.New("search requires a query"))
	}
	query := args.Raw[0]

	metas, err := store.Search(query)
	if err != nil {
		fatal(err)
	}
	if len(metas) == 0 {
		metas, err = store.SearchMessages(query)
		if err != nil {
			fatal(err)
		}
	}

	if args.JSON {
		printJSON(metas)
		return
	}
	if len(metas) == 0 {
		fmt.Printf("No sessions matching %q.\n", query)
		return
	}
	for _, meta := range metas {
		printMeta(meta)
	}
}

func showSession(store *session.Store, args *Args) {
	sess := loadArgSession(store, args)
	fmt.Print(sess.ExportMarkdown())
}

func deleteSession(store *session.Store, args *Args) {
	if len(args.Raw) == 0 {
		fatal(errors.New("delete requires a session ID"))
	}
	if err := store.Delete(args.Raw[0]); err != nil {
		fatal(err)
	}
	fmt.Printf("Deleted session %s.\n", args.Raw[0])
}

// exportSession writes markdown by default, JSON with --json.
func exportSession(store *session.Store, args *Args) {
	sess := loadArgSession(store, args)
	if args.JSON {
		data, err := sess.ExportJSON()
		if err != nil {
			fatal(err)
		}
		os.Stdout.Write(data)
		fmt.Println()
		return
	}
	fmt.Print(sess.ExportMarkdown())
}

func loadArgSession(store *session.Store, args *Args) *session.Session {
	if len(args.Raw) == 0 {
		fatal(errors.New("a session ID is required"))
	}
	sess, err := store.Load(args.Raw[0])
	if err != nil {
		fatal(err)
	}
	return sess
}

func printMeta(meta session.Meta) {
	title := util.TruncateRunes(meta.Title, 50)
	fmt.Printf("  %-36s  %-50s  %3d msgs  %s\n",
		meta.ID, title, meta.MessageCount, meta.UpdatedAt.Format("2006-01-02 15:04"))
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	os.Stdout.Write(data)
	fmt.Println()
}
