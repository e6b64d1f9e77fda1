package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"bn-breakout-bot/internal/app"

	"github.com/spf13/cobra"
)

func newLevelsCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Print the current channel levels per symbol without trading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			reports, err := app.Levels(ctx, cfg, log)
			if writeErr := writeLevels(cmd.OutOrStdout(), reports); writeErr != nil {
				return writeErr
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline for the exchange reads")
	return cmd
}

func writeLevels(out io.Writer, reports []app.LevelsReport) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tLONG ENTRY\tLONG EXIT\tSHORT ENTRY\tSHORT EXIT\tMARK\tDIRECTION\tEXPOSURE")
	for _, r := range reports {
		if r.Err != nil {
			fmt.Fprintf(w, "%s\terror: %v\n", r.Asset, r.Err)
			continue
		}
		direction, exposure := "-", "-"
		if r.Direction != "" {
			direction, exposure = r.Direction, r.Exposure.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Asset,
			r.Levels.LongEntry,
			r.Levels.LongExit,
			r.Levels.ShortEntry,
			r.Levels.ShortExit,
			r.MarkPrice,
			direction,
			exposure,
		)
	}
	return w.Flush()
}
