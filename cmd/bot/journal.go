package main

import (
	"fmt"
	"io"
	"strings"

	"bn-breakout-bot/internal/journal"
	"bn-breakout-bot/internal/journal/sqlite"

	"github.com/spf13/cobra"
)

func newJournalCmd(opts *rootOptions) *cobra.Command {
	var (
		dbPath string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "journal <symbol>",
		Short: "Show the most recent decisions recorded for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := dbPath
			if path == "" {
				cfg, _, err := opts.load()
				if err != nil {
					return err
				}
				path = cfg.Journal.SQLitePath
			}
			store, err := sqlite.New(path)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()
			entries, err := store.Recent(cmd.Context(), strings.ToUpper(args[0]), limit)
			if err != nil {
				return err
			}
			writeEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dbPath, "db", "d", "", "journal database (default: journal.sqlite_path from config)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of decisions to show")
	return cmd
}

func writeEntries(out io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "no decisions recorded")
		return
	}
	for _, e := range entries {
		ts := e.Time.Format("2006-01-02 15:04:05")
		if e.Error != "" && e.Action == "" {
			fmt.Fprintf(out, "%s %s aborted: %s\n", ts, e.Asset, e.Error)
			continue
		}
		fmt.Fprintf(out, "%s %s %s mark=%s levels=%s/%s/%s/%s exposure=%s can_trade=%t action=%s\n",
			ts, e.Asset, e.Direction, e.MarkPrice,
			e.LongEntry, e.LongExit, e.ShortEntry, e.ShortExit,
			e.Exposure, e.CanTrade, e.Action)
		for _, o := range e.Orders {
			line := fmt.Sprintf("  %s %s %s", o.Reason, o.Side, o.Type)
			if o.StopPrice != "" {
				line += " stop=" + o.StopPrice
			}
			if o.Quantity != "" {
				line += " qty=" + o.Quantity
			}
			if o.ClosePosition {
				line += " close"
			}
			if o.Error != "" {
				line += " rejected: " + o.Error
			} else if o.OrderID != "" {
				line += " id=" + o.OrderID
			}
			fmt.Fprintln(out, line)
		}
		for _, s := range e.Skipped {
			fmt.Fprintf(out, "  skipped %s\n", s)
		}
	}
}
