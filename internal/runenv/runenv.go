// Package runenv holds the state shared by every component of one pipeline
// run. An Env is built once at startup and passed by pointer.
package runenv

import (
	"log/slog"
	"path/filepath"

	"ribodb/internal/checkpoint"
	"ribodb/internal/config"
	"ribodb/internal/ledger"
	"ribodb/internal/logging"
	"ribodb/internal/services/runner"
)

// File names under the output root.
const (
	LedgerFile     = "ledger.tsv"
	SequencesFile  = "ribo16s.fasta"
	SummaryFile    = "ribo16s_summary.tsv"
	LockFile       = ".ribodb.lock"
	HistoryFile    = "history.db"
	AlignmentDir   = "alignment"
	ExampleItemID  = "example"
	ParametersFile = "parameters"
)

// Env is the run context.
type Env struct {
	Config      *config.Config
	OutputDir   string
	Checkpoints checkpoint.Store
	Ledger      *ledger.Ledger
	Runner      runner.Runner
	Logger      *slog.Logger
	RunID       string
}

// Log returns the env logger, or a no-op logger when unset.
func (e *Env) Log() *slog.Logger {
	if e.Logger == nil {
		return logging.NewNop()
	}
	return e.Logger
}

func (e *Env) ItemDir(id string) string        { return filepath.Join(e.OutputDir, id) }
func (e *Env) LedgerPath() string              { return filepath.Join(e.OutputDir, LedgerFile) }
func (e *Env) SequencesPath() string           { return filepath.Join(e.OutputDir, SequencesFile) }
func (e *Env) SummaryPath() string             { return filepath.Join(e.OutputDir, SummaryFile) }
func (e *Env) LockPath() string                { return filepath.Join(e.OutputDir, LockFile) }
func (e *Env) HistoryPath() string             { return filepath.Join(e.OutputDir, HistoryFile) }
func (e *Env) AlignmentDir() string            { return filepath.Join(e.OutputDir, AlignmentDir) }
func (e *Env) ParametersPath() string          { return filepath.Join(e.OutputDir, ParametersFile) }
func (e *Env) Record(entry ledger.Entry) error { return e.Ledger.Record(entry) }

// Layout names the per-item working paths.
type Layout struct {
	Root string
}

// Layout returns the working paths for item id.
func (e *Env) Layout(id string) Layout {
	return Layout{Root: e.ItemDir(id)}
}

func (l Layout) DataDir() string       { return filepath.Join(l.Root, "data") }
func (l Layout) ReferenceDir() string  { return filepath.Join(l.Root, "plentyofbugs") }
func (l Layout) BestReference() string { return filepath.Join(l.ReferenceDir(), "best_reference") }
func (l Layout) GenomeLength() string  { return filepath.Join(l.ReferenceDir(), "genome_length") }

// ReferenceRRNA is the barrnap annotation of the chosen reference.
func (l Layout) ReferenceRRNA() string {
	return filepath.Join(l.ReferenceDir(), "barrnap_reference.gff")
}

func (l Layout) TaxonomyDir() string    { return filepath.Join(l.Root, "kraken2") }
func (l Layout) KrakenReport() string   { return filepath.Join(l.TaxonomyDir(), "kraken2.report") }
func (l Layout) KrakenOutput() string   { return filepath.Join(l.TaxonomyDir(), "kraken2.out") }
func (l Layout) TrimDir() string        { return filepath.Join(l.Root, "sickle") }
func (l Layout) TrimmedForward() string { return filepath.Join(l.TrimDir(), "trimmed_1.fastq") }
func (l Layout) TrimmedReverse() string { return filepath.Join(l.TrimDir(), "trimmed_2.fastq") }
func (l Layout) TrimmedSingles() string { return filepath.Join(l.TrimDir(), "singles.fastq") }
func (l Layout) DownsampleDir() string  { return filepath.Join(l.Root, "downsampled") }
func (l Layout) ReadsManifest() string  { return filepath.Join(l.DownsampleDir(), "reads.tsv") }
func (l Layout) AssemblyDir() string    { return filepath.Join(l.Root, "riboSeed") }
func (l Layout) AssemblyLog() string    { return filepath.Join(l.Root, "riboSeed.log") }
func (l Layout) AnnotationDir() string  { return filepath.Join(l.Root, "barrnap") }
func (l Layout) Annotation() string     { return filepath.Join(l.AnnotationDir(), "contigs.gff") }
func (l Layout) ToolLog() string        { return filepath.Join(l.Root, "tools.log") }
