package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"ribodb/internal/history"
	"ribodb/internal/runenv"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [ITEM]",
		Short: "List past runs, or the recorded outcomes of one item",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cmd.Context(), filepath.Join(cfg.Paths.OutputDir, runenv.HistoryFile))
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				table, err := itemHistoryTable(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, table)
				return nil
			}
			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID.String()[:8],
					r.StartedAt.Local().Format(time.DateTime),
					r.Duration().Round(time.Second).String(),
					string(r.Status),
					strconv.Itoa(r.Items),
					strconv.Itoa(r.Sequences),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Duration", "Status", "Items", "Sequences"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 shows all)")
	return cmd
}

func itemHistoryTable(ctx context.Context, store *history.Store, item string) (string, error) {
	records, err := store.ItemHistory(ctx, item)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return fmt.Sprintf("No history for %s", item), nil
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.RunID.String()[:8],
			rec.StartedAt.Local().Format(time.DateTime),
			rec.Entry.Stage,
			string(rec.Entry.Status),
			rec.Entry.Note,
		})
	}
	return renderTable([]string{"Run", "Started", "Stage", "Status", "Note"}, rows, nil), nil
}
