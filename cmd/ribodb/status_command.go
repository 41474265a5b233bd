package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ribodb/internal/checkpoint"
	"ribodb/internal/ledger"
	"ribodb/internal/runenv"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-item checkpoints and the last run ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			root := cfg.Paths.OutputDir

			items, err := listItems(root)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintf(out, "No items under %s\n", root)
				return nil
			}
			store := checkpoint.NewFileStore(root)
			rows, err := markerRows(store, items)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderTable(markerHeaders(), rows, markerAlignments()))

			data, err := os.ReadFile(filepath.Join(root, runenv.LedgerFile))
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read ledger: %w", err)
			}
			fmt.Fprintln(out, summarizeLedger(ledger.Parse(string(data))))
			return nil
		},
	}
}

// listItems returns the item directories under root that carry checkpoints.
func listItems(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	var items []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, entry.Name(), checkpoint.StatusFile)); err == nil {
			items = append(items, entry.Name())
		}
	}
	slices.Sort(items)
	return items, nil
}

// markerLabel turns REFERENCE_SELECTED into "Reference Selected".
func markerLabel(m checkpoint.Marker) string {
	words := strings.ReplaceAll(strings.ToLower(string(m)), "_", " ")
	return cases.Title(language.English).String(words)
}

func markerHeaders() []string {
	headers := []string{"Item"}
	for _, m := range checkpoint.Ordered() {
		headers = append(headers, markerLabel(m))
	}
	return headers
}

func markerAlignments() []columnAlignment {
	aligns := []columnAlignment{alignLeft}
	for range checkpoint.Ordered() {
		aligns = append(aligns, alignCenter)
	}
	return aligns
}

func markerRows(store checkpoint.Store, items []string) ([][]string, error) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		set, err := store.Markers(item)
		if err != nil {
			return nil, fmt.Errorf("read checkpoints for %s: %w", item, err)
		}
		row := []string{item}
		for _, m := range checkpoint.Ordered() {
			cell := "-"
			if set.Has(m) {
				cell = "yes"
			}
			row = append(row, cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func summarizeLedger(entries []ledger.Entry) string {
	counts := map[ledger.Status]int{}
	global := "no global entry"
	for _, e := range entries {
		if e.Item == ledger.Global {
			global = fmt.Sprintf("%s (%s)", e.Status, e.Note)
			continue
		}
		counts[e.Status]++
	}
	return fmt.Sprintf("Last run: %s; item entries: %d PASS, %d FAIL, %d ERROR",
		global, counts[ledger.StatusPass], counts[ledger.StatusFail], counts[ledger.StatusError])
}
