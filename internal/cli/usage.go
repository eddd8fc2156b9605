// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/codepod-dev/codepod/internal/config"
	"github.com/codepod-dev/codepod/internal/usage"
	"github.com/codepod-dev/codepod/internal/util"
)

// HandleUsage reports token and cost accounting.
func HandleUsage(args *Args) {
	store, err := openUsageStore(config.Global())
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	switch args.Subcommand {
	case "", "total":
		printTotals(store, args)
	case "daily":
		printDaily(store, args)
	case "models", "by-model":
		printByModel(store, args)
	case "export":
		data, err := store.ExportJSON()
		if err != nil {
			fatal(err)
		}
		os.Stdout.Write(data)
		fmt.Println()
	case "clear":
		if err := store.Clear(); err != nil {
			fatal(err)
		}
		fmt.Println("Usage records cleared.")
	default:
		fmt.Fprintf(os.Stderr, "Unknown usage subcommand: %s\n", args.Subcommand)
		fmt.Fprintln(os.Stderr, "Usage: codepod usage [total|daily|models|export|clear]")
		os.Exit(1)
	}
}

func printTotals(store *usage.Store, args *Args) {
	totals, err := store.Total()
	if err != nil {
		fatal(err)
	}
	week, err := store.LastNDays(7)
	if err != nil {
		fatal(err)
	}

	if args.JSON {
		printJSON(map[string]usage.Totals{"allTime": totals, "last7Days": week})
		return
	}

	fmt.Println("All time")
	printTotalsRow(totals)
	fmt.Println("\nLast 7 days")
	printTotalsRow(week)
}

func printTotalsRow(t usage.Totals) {
	fmt.Printf("  requests: %d  tokens: %s (in %s / out %s)  cost: %s\n",
		t.RequestCount,
		util.FormatTokens(t.TotalTokens),
		util.FormatTokens(t.InputTokens),
		util.FormatTokens(t.OutputTokens),
		util.FormatCost(t.Cost))
}

func printDaily(store *usage.Store, args *Args) {
	days, err := store.Daily()
	if err != nil {
		fatal(err)
	}
	if args.JSON {
		printJSON(days)
		return
	}
	if len(days) == 0 {
		fmt.Println("No usage recorded.")
		return
	}
	for _, day := range days {
		fmt.Printf("  %s  %8s tokens  %8s  (%d requests)\n",
			day.Date,
			util.FormatTokens(day.TotalTokens),
			util.FormatCost(day.Cost),
			day.RequestCount)
	}
}

func printByModel(store *usage.Store, args *Args) {
	models, err := store.ByModel()
	if err != nil {
		fatal(err)
	}
	if args.JSON {
		printJSON(models)
		return
	}
	if len(models) == 0 {
		fmt.Println("No usage recorded.")
		return
	}
	for _, m := range models {
		fmt.Printf("  %-30s  %8s tokens  %8s  (%d requests)\n",
			m.Model,
			util.FormatTokens(m.Tokens),
			util.FormatCost(m.Cost),
			m.Count)
	}
}
