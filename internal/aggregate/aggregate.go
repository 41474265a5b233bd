// Package aggregate extracts annotated 16S regions from every usable
// assembly, tags them with the item's taxonomy, and writes the run-level
// sequence and summary files plus the single global ledger entry.
package aggregate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"ribodb/internal/fileutil"
	"ribodb/internal/ledger"
	"ribodb/internal/logging"
	"ribodb/internal/runenv"
	"ribodb/internal/seqio"
	"ribodb/internal/services"
	"ribodb/internal/services/tools"
	"ribodb/internal/taxonomy"
)

// StageName labels aggregation entries in the ledger.
const StageName = "aggregate"

// Input is one item with a usable assembly.
type Input struct {
	ItemID   string
	Contigs  string
	Taxonomy taxonomy.Taxonomy
}

// Summary describes the aggregation outcome.
type Summary struct {
	Items     int
	Sequences int
	// PerItem holds the number of regions extracted from each item.
	PerItem map[string]int
	Status  ledger.Status
}

// Failed reports whether the run produced no usable sequence.
func (s Summary) Failed() bool {
	return s.Sequences == 0
}

// Aggregator writes the run outputs.
type Aggregator struct {
	env    *runenv.Env
	logger *slog.Logger
}

func New(env *runenv.Env) *Aggregator {
	return &Aggregator{env: env, logger: logging.NewComponentLogger(env.Log(), "aggregate")}
}

// Reset truncates both run-level outputs.
func (a *Aggregator) Reset() error {
	for _, path := range []string{a.env.SequencesPath(), a.env.SummaryPath()} {
		if err := fileutil.Truncate(path); err != nil {
			return fmt.Errorf("truncate %s: %w", path, err)
		}
	}
	return nil
}

// Run annotates and extracts every input, then writes exactly one global
// ledger entry. A failure for one item is recorded as ERROR for that item
// and does not stop the others. The returned error covers only failures to
// write run-level outputs.
func (a *Aggregator) Run(ctx context.Context, inputs []Input) (Summary, error) {
	summary := Summary{Items: len(inputs), PerItem: map[string]int{}}

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		n, err := a.process(ctx, in)
		if err != nil {
			a.logItemFailure(ctx, in.ItemID, err)
			continue
		}
		summary.PerItem[in.ItemID] = n
		summary.Sequences += n
		if n == 0 {
			a.record(ledger.Entry{Item: in.ItemID, Status: ledger.StatusFail, Stage: StageName, Note: "no 16S regions extracted"})
		}
	}

	entry := ledger.Entry{Item: ledger.Global, Stage: StageName}
	if summary.Failed() {
		entry.Status = ledger.StatusFail
		entry.Note = "no sequences extracted"
		a.logger.Error("no 16S sequences recovered", logging.Int("items", summary.Items))
	} else {
		entry.Status = ledger.StatusPass
		entry.Note = fmt.Sprintf("%d sequences from %d items", summary.Sequences, len(summary.PerItem))
		a.logger.Info("aggregation complete",
			logging.Int("sequences", summary.Sequences),
			logging.Int("items", len(summary.PerItem)),
		)
	}
	summary.Status = entry.Status
	if err := a.env.Record(entry); err != nil {
		return summary, fmt.Errorf("record global entry: %w", err)
	}
	return summary, nil
}

func (a *Aggregator) logItemFailure(ctx context.Context, item string, err error) {
	ctx = services.WithStage(services.WithItemID(ctx, item), StageName)
	logging.WithContext(ctx, a.logger).Error("aggregation failed", logging.Error(err))
	a.record(ledger.Entry{Item: item, Status: ledger.StatusError, Stage: StageName, Note: err.Error()})
}

func (a *Aggregator) record(entry ledger.Entry) {
	if err := a.env.Record(entry); err != nil {
		a.logger.Error("ledger write failed", logging.Error(err))
	}
}

// region is one extracted sequence.
type region struct {
	id      string
	feature tools.Feature
	seq     []byte
}

func (a *Aggregator) process(ctx context.Context, in Input) (int, error) {
	layout := a.env.Layout(in.ItemID)
	if err := os.RemoveAll(layout.AnnotationDir()); err != nil {
		return 0, fmt.Errorf("remove stale annotation: %w", err)
	}
	ctx = services.WithStage(services.WithItemID(ctx, in.ItemID), StageName)

	inv := tools.Barrnap(a.env.Config.Tools.Barrnap, in.Contigs, layout.Annotation())
	inv.Log = layout.ToolLog()
	if err := a.env.Runner.Run(ctx, inv); err != nil {
		return 0, err
	}
	features, err := tools.ReadGFF(layout.Annotation())
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, StageName, "barrnap", "unreadable annotation", err)
	}
	features = tools.Filter16S(features)

	regions, err := extract(in, features)
	if err != nil {
		return 0, err
	}
	if err := a.write(in, regions); err != nil {
		return 0, err
	}
	logging.WithContext(ctx, a.logger).Info("16S regions extracted", logging.Int("count", len(regions)))
	return len(regions), nil
}

// extract cuts every feature out of the contigs, reverse-complementing
// minus-strand features.
func extract(in Input, features []tools.Feature) ([]region, error) {
	if len(features) == 0 {
		return nil, nil
	}
	records, err := seqio.ReadFasta(in.Contigs)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, StageName, "read contigs", "unreadable assembly", err)
	}
	index := seqio.Index(records)

	out := make([]region, 0, len(features))
	for i, f := range features {
		rec, ok := index[f.SeqID]
		if !ok {
			return nil, services.Wrap(services.ErrValidation, StageName, "extract", fmt.Sprintf("sequence %q not in assembly", f.SeqID), nil)
		}
		if f.End > len(rec.Seq) {
			return nil, services.Wrap(services.ErrValidation, StageName, "extract",
				fmt.Sprintf("region %s:%d-%d exceeds sequence length %d", f.SeqID, f.Start, f.End, len(rec.Seq)), nil)
		}
		seq := append([]byte(nil), rec.Seq[f.Start:f.End]...)
		if f.Reverse() {
			seq = seqio.RevComp(seq)
		}
		out = append(out, region{
			id:      in.ItemID + "_" + strconv.Itoa(i+1),
			feature: f,
			seq:     seq,
		})
	}
	return out, nil
}

func (a *Aggregator) write(in Input, regions []region) error {
	if len(regions) == 0 {
		return nil
	}
	seqFile, err := fileutil.OpenAppend(a.env.SequencesPath())
	if err != nil {
		return err
	}
	defer seqFile.Close()
	sumFile, err := fileutil.OpenAppend(a.env.SummaryPath())
	if err != nil {
		return err
	}
	defer sumFile.Close()

	seqBuf := bufio.NewWriter(seqFile)
	sumBuf := bufio.NewWriter(sumFile)

	out := a.env.Config.Output
	width := out.LineWidth
	if out.SingleLine {
		width = 0
	}
	fw := seqio.NewFastaWriter(seqBuf, width)
	label := in.Taxonomy.FallbackLabel()
	for _, r := range regions {
		if err := fw.Write(r.id+" "+label, r.seq); err != nil {
			return err
		}
		if err := writeSummaryLine(sumBuf, in, r, label); err != nil {
			return err
		}
	}
	if err := seqBuf.Flush(); err != nil {
		return err
	}
	if err := sumBuf.Flush(); err != nil {
		return err
	}
	if err := seqFile.Close(); err != nil {
		return err
	}
	return sumFile.Close()
}

func writeSummaryLine(w io.Writer, in Input, r region, label string) error {
	fields := []string{
		r.id,
		in.Contigs,
		r.feature.SeqID,
		strconv.Itoa(r.feature.Start),
		strconv.Itoa(r.feature.End),
		in.Taxonomy.Labels(";"),
		in.Taxonomy.Scores(";"),
		in.Taxonomy.TaxIDs(";"),
		label,
	}
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, "\t", " ")
	}
	_, err := io.WriteString(w, strings.Join(fields, "\t")+"\n")
	return err
}
