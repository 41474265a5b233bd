package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ribodb/internal/assembly"
	"ribodb/internal/checkpoint"
	"ribodb/internal/fileutil"
	"ribodb/internal/logging"
	"ribodb/internal/runenv"
	"ribodb/internal/seqio"
	"ribodb/internal/services"
	"ribodb/internal/services/tools"
	"ribodb/internal/taxonomy"
)

// Stage names used in logs and ledger entries.
const (
	StageDownload   = "download"
	StageReadLength = "read_length"
	StageReference  = "reference"
	StageTaxonomy   = "taxonomy"
	StageTrim       = "trim"
	StageDownsample = "downsample"
)

// Executor runs the sequential stages for one item at a time.
type Executor struct {
	env    *runenv.Env
	logger *slog.Logger
}

// NewExecutor binds an executor to the run environment.
func NewExecutor(env *runenv.Env) *Executor {
	return &Executor{env: env, logger: logging.NewComponentLogger(env.Log(), "pipeline")}
}

// stage is one checkpointed step. run produces artifact; load repopulates the
// item from an existing artifact when the stage is skipped.
type stage struct {
	name     string
	marker   checkpoint.Marker
	dir      string
	artifact string
	// keepDir leaves directory creation to the tool.
	keepDir bool
	run     func(ctx context.Context) error
	load    func() error
}

// Process runs every stage up to assembly and returns the item's assembly
// job. Errors are classified with services.LedgerStatus by the caller.
func (e *Executor) Process(ctx context.Context, item *Item) (assembly.Job, error) {
	ctx = services.WithItemID(ctx, item.ID)
	layout := e.env.Layout(item.ID)
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return assembly.Job{}, fmt.Errorf("create item directory: %w", err)
	}

	if !item.Example {
		if err := e.download(ctx, item, layout); err != nil {
			return assembly.Job{}, err
		}
	}
	if err := e.checkReadLength(ctx, item); err != nil {
		return assembly.Job{}, err
	}

	steps := []stage{
		e.referenceStage(item, layout),
		e.taxonomyStage(item, layout),
		e.trimStage(item, layout),
		e.downsampleStage(item, layout),
	}
	for _, st := range steps {
		if err := e.runStage(ctx, item, st); err != nil {
			return assembly.Job{}, err
		}
		if st.marker == checkpoint.ReferenceSelected {
			if err := e.checkDistance(item); err != nil {
				return assembly.Job{}, err
			}
		}
	}
	return e.assemblyJob(ctx, item, layout)
}

func (e *Executor) runStage(ctx context.Context, item *Item, st stage) error {
	ctx = services.WithStage(ctx, st.name)
	logger := logging.WithContext(ctx, e.logger)

	done, err := e.env.Checkpoints.Has(item.ID, st.marker)
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	if done && fileutil.NonEmpty(st.artifact) {
		var loadErr error
		if st.load != nil {
			loadErr = st.load()
		}
		if loadErr == nil {
			logger.Debug("stage skipped", logging.String(logging.FieldEventType, "stage_skip"))
			return nil
		}
		logger.Warn("stage artifact unreadable; rerunning", logging.Error(loadErr))
	}

	if err := e.env.Checkpoints.Invalidate(item.ID, checkpoint.From(st.marker)...); err != nil {
		return fmt.Errorf("invalidate checkpoints: %w", err)
	}
	if err := os.RemoveAll(st.dir); err != nil {
		return fmt.Errorf("remove stale %s output: %w", st.name, err)
	}
	if !st.keepDir {
		if err := os.MkdirAll(st.dir, 0o755); err != nil {
			return fmt.Errorf("create %s directory: %w", st.name, err)
		}
	}

	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	start := time.Now()
	if err := st.run(ctx); err != nil {
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.Error(err),
		)
		return err
	}
	if err := e.env.Checkpoints.Complete(item.ID, st.marker); err != nil {
		return fmt.Errorf("complete checkpoint: %w", err)
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", time.Since(start)),
	)
	return nil
}

func (e *Executor) download(ctx context.Context, item *Item, layout runenv.Layout) error {
	forward := filepath.Join(layout.DataDir(), item.ID+"_1.fastq")
	reverse := filepath.Join(layout.DataDir(), item.ID+"_2.fastq")
	cfg := e.env.Config

	st := stage{
		name:     StageDownload,
		marker:   checkpoint.Downloaded,
		dir:      layout.DataDir(),
		artifact: forward,
		run: func(ctx context.Context) error {
			inv := tools.FasterqDump(cfg.Tools.FasterqDump, item.ID, cfg.Assembly.Cores, layout.DataDir())
			if err := e.env.Runner.Run(ctx, inv); err != nil {
				return toolError(ErrDownload, StageDownload, "fasterq-dump failed", err)
			}
			if !fileutil.NonEmpty(forward) {
				return toolError(ErrDownload, StageDownload, "forward reads not detected", nil)
			}
			return nil
		},
	}
	if err := e.runStage(ctx, item, st); err != nil {
		return err
	}
	item.Forward = forward
	item.Reverse = ""
	if fileutil.NonEmpty(reverse) {
		item.Reverse = reverse
	}
	return nil
}

func (e *Executor) checkReadLength(ctx context.Context, item *Item) error {
	reads := e.env.Config.Reads
	if !fileutil.NonEmpty(item.Forward) {
		return reject(ErrReadLength, StageReadLength, "forward reads missing or empty")
	}
	avg, err := seqio.AverageReadLength(item.Forward, reads.SampleSize)
	if err != nil {
		return fail(services.ErrValidation, ErrReadLength, StageReadLength, "cannot measure read length", err)
	}
	item.ReadLength = avg
	logging.WithContext(services.WithStage(ctx, StageReadLength), e.logger).Debug("average read length",
		logging.Float64("read_length", avg))
	switch {
	case avg < float64(reads.MinLength):
		return reject(ErrReadLength, StageReadLength, fmt.Sprintf("average read length %.1f below %d", avg, reads.MinLength))
	case avg > float64(reads.MaxLength):
		return reject(ErrReadLength, StageReadLength, fmt.Sprintf("average read length %.1f above %d", avg, reads.MaxLength))
	}
	return nil
}

func (e *Executor) referenceStage(item *Item, layout runenv.Layout) stage {
	cfg := e.env.Config
	load := func() error {
		ref, err := tools.ReadBestReference(layout.BestReference())
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(layout.GenomeLength())
		if err != nil {
			return err
		}
		length, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil {
			return fmt.Errorf("genome_length: %w", err)
		}
		item.Reference = ref
		item.GenomeLength = length
		return nil
	}
	return stage{
		name:     StageReference,
		marker:   checkpoint.ReferenceSelected,
		dir:      layout.ReferenceDir(),
		artifact: layout.BestReference(),
		keepDir:  true,
		load:     load,
		run: func(ctx context.Context) error {
			inv := tools.Plentyofbugs(cfg.Tools.Plentyofbugs, tools.PlentyofbugsArgs{
				GenomesDir:   cfg.Paths.GenomesDir,
				Reads:        item.Forward,
				OutDir:       layout.ReferenceDir(),
				Downsampling: cfg.Reference.DownsamplingAmount,
			})
			if err := e.env.Runner.Run(ctx, inv); err != nil {
				return toolError(ErrBestReference, StageReference, "plentyofbugs failed", err)
			}
			ref, err := tools.ReadBestReference(layout.BestReference())
			if err != nil {
				return toolError(ErrBestReference, StageReference, "unreadable best_reference", err)
			}
			records, err := seqio.ReadFasta(ref.Path)
			if err != nil {
				return toolError(ErrBestReference, StageReference, "unreadable reference genome", err)
			}
			length := seqio.TotalLength(records)
			if err := fileutil.WriteAtomic(layout.GenomeLength(), []byte(strconv.FormatInt(length, 10)+"\n"), 0o644); err != nil {
				return err
			}
			if cfg.Reference.CheckRDNACopies {
				if err := e.checkRDNACopies(ctx, ref.Path, layout); err != nil {
					return err
				}
			}
			item.Reference = ref
			item.GenomeLength = length
			return nil
		},
	}
}

// checkRDNACopies rejects references with fewer than two annotated 16S genes.
func (e *Executor) checkRDNACopies(ctx context.Context, reference string, layout runenv.Layout) error {
	inv := tools.Barrnap(e.env.Config.Tools.Barrnap, reference, layout.ReferenceRRNA())
	inv.Log = layout.ToolLog()
	if err := e.env.Runner.Run(ctx, inv); err != nil {
		return toolError(ErrBestReference, StageReference, "barrnap on reference failed", err)
	}
	features, err := tools.ReadGFF(layout.ReferenceRRNA())
	if err != nil {
		return toolError(ErrBestReference, StageReference, "unreadable reference annotation", err)
	}
	if n := len(tools.Filter16S(features)); n < 2 {
		return reject(ErrReferenceNotGoodEnough, StageReference, fmt.Sprintf("reference has %d 16S copies; need at least 2", n))
	}
	return nil
}

func (e *Executor) checkDistance(item *Item) error {
	limit := e.env.Config.Reference.MaxDistance
	if item.Reference.Distance > limit {
		return reject(ErrReferenceNotGoodEnough, StageReference,
			fmt.Sprintf("distance %g to %s exceeds %g", item.Reference.Distance, filepath.Base(item.Reference.Path), limit))
	}
	return nil
}

func (e *Executor) taxonomyStage(item *Item, layout runenv.Layout) stage {
	cfg := e.env.Config
	load := func() error {
		f, err := os.Open(layout.KrakenReport())
		if err != nil {
			return err
		}
		defer f.Close()
		tax, err := taxonomy.ParseReport(f)
		if err != nil {
			return err
		}
		item.Taxonomy = tax
		return nil
	}
	return stage{
		name:     StageTaxonomy,
		marker:   checkpoint.TaxonomyAssigned,
		dir:      layout.TaxonomyDir(),
		artifact: layout.KrakenReport(),
		load:     load,
		run: func(ctx context.Context) error {
			if cfg.Taxonomy.Kraken2DB == "" {
				return fail(services.ErrConfiguration, ErrKraken2, StageTaxonomy, "kraken2 database not configured", nil)
			}
			inv := tools.Kraken2(cfg.Tools.Kraken2, tools.Kraken2Args{
				DB:      cfg.Taxonomy.Kraken2DB,
				Threads: cfg.Assembly.Cores,
				Report:  layout.KrakenReport(),
				Output:  layout.KrakenOutput(),
				Forward: item.Forward,
				Reverse: item.Reverse,
				Log:     layout.ToolLog(),
			})
			if err := e.env.Runner.Run(ctx, inv); err != nil {
				return toolError(ErrKraken2, StageTaxonomy, "kraken2 failed", err)
			}
			if !fileutil.NonEmpty(layout.KrakenReport()) {
				return toolError(ErrKraken2, StageTaxonomy, "kraken2 produced an empty report", nil)
			}
			if err := load(); err != nil {
				return toolError(ErrKraken2, StageTaxonomy, "unreadable kraken2 report", err)
			}
			logging.WithContext(ctx, e.logger).Info("taxonomy assigned",
				logging.String("label", item.Taxonomy.FallbackLabel()))
			return nil
		},
	}
}

func (e *Executor) trimStage(item *Item, layout runenv.Layout) stage {
	cfg := e.env.Config
	setPaths := func() {
		item.TrimmedForward = layout.TrimmedForward()
		item.TrimmedReverse = ""
		if item.Paired() {
			item.TrimmedReverse = layout.TrimmedReverse()
		}
	}
	return stage{
		name:     StageTrim,
		marker:   checkpoint.Trimmed,
		dir:      layout.TrimDir(),
		artifact: layout.TrimmedForward(),
		load: func() error {
			setPaths()
			if item.Paired() && !fileutil.NonEmpty(item.TrimmedReverse) {
				return errors.New("trimmed reverse reads missing")
			}
			return nil
		},
		run: func(ctx context.Context) error {
			args := tools.SickleArgs{
				Quality:    cfg.Tools.SickleQuality,
				Forward:    item.Forward,
				OutForward: layout.TrimmedForward(),
				Log:        layout.ToolLog(),
			}
			if item.Paired() {
				args.Reverse = item.Reverse
				args.OutReverse = layout.TrimmedReverse()
				args.OutSingles = layout.TrimmedSingles()
			}
			if err := e.env.Runner.Run(ctx, tools.Sickle(cfg.Tools.Sickle, args)); err != nil {
				return toolError(ErrTrimming, StageTrim, "sickle failed", err)
			}
			if !fileutil.NonEmpty(layout.TrimmedForward()) {
				return toolError(ErrTrimming, StageTrim, "sickle produced no reads", nil)
			}
			setPaths()
			return nil
		},
	}
}

func (e *Executor) downsampleStage(item *Item, layout runenv.Layout) stage {
	cfg := e.env.Config
	return stage{
		name:     StageDownsample,
		marker:   checkpoint.Downsampled,
		dir:      layout.DownsampleDir(),
		artifact: layout.ReadsManifest(),
		load: func() error {
			m, err := readManifest(layout.ReadsManifest())
			if err != nil {
				return err
			}
			item.AssemblyForward, item.AssemblyReverse, item.Coverage = m.Forward, m.Reverse, m.Coverage
			return nil
		},
		run: func(ctx context.Context) error {
			genomeLength := item.GenomeLength
			if cfg.Reference.ApproxLength > 0 {
				genomeLength = int64(cfg.Reference.ApproxLength)
			}
			if genomeLength <= 0 {
				return fail(services.ErrValidation, ErrCoverage, StageDownsample, "genome length unknown", nil)
			}
			reads, err := seqio.CountReads(item.TrimmedForward)
			if err != nil {
				return fail(services.ErrValidation, ErrCoverage, StageDownsample, "cannot count trimmed reads", err)
			}
			coverage := Coverage(reads, item.ReadLength, item.Paired(), genomeLength)
			logger := logging.WithContext(ctx, e.logger)
			logger.Info("read coverage",
				logging.Float64("coverage", coverage),
				logging.Int64("reads", reads),
				logging.Int64("genome_length", genomeLength),
			)
			if coverage < cfg.Coverage.Min {
				return reject(ErrCoverage, StageDownsample, fmt.Sprintf("coverage %.2f below minimum %g", coverage, cfg.Coverage.Min))
			}

			m := manifest{Forward: item.TrimmedForward, Reverse: item.TrimmedReverse, Coverage: coverage}
			if coverage > cfg.Coverage.Max {
				fraction := SampleFraction(cfg.Coverage.Max, coverage)
				logger.Info("downsampling reads", logging.Float64("fraction", fraction))
				m.Forward = filepath.Join(layout.DownsampleDir(), "downsampledreadsf.fastq")
				inv := tools.SeqtkSample(cfg.Tools.Seqtk, item.TrimmedForward, fraction, cfg.Coverage.Seed, m.Forward)
				if err := e.env.Runner.Run(ctx, inv); err != nil {
					return toolError(ErrDownsampling, StageDownsample, "seqtk sample failed", err)
				}
				if item.TrimmedReverse != "" {
					m.Reverse = filepath.Join(layout.DownsampleDir(), "downsampledreadsr.fastq")
					inv := tools.SeqtkSample(cfg.Tools.Seqtk, item.TrimmedReverse, fraction, cfg.Coverage.Seed, m.Reverse)
					if err := e.env.Runner.Run(ctx, inv); err != nil {
						return toolError(ErrDownsampling, StageDownsample, "seqtk sample failed", err)
					}
				}
			}
			if err := writeManifest(layout.ReadsManifest(), m); err != nil {
				return err
			}
			item.AssemblyForward, item.AssemblyReverse, item.Coverage = m.Forward, m.Reverse, m.Coverage
			return nil
		},
	}
}

// assemblyJob returns a nil-command job when contigs from an earlier run are
// still valid, otherwise clears the stale assembly directory and builds the
// assembler invocation.
func (e *Executor) assemblyJob(ctx context.Context, item *Item, layout runenv.Layout) (assembly.Job, error) {
	contigs := tools.ContigsPath(layout.AssemblyDir())
	job := assembly.Job{
		ItemID:     item.ID,
		OutputPath: contigs,
		LogPath:    layout.AssemblyLog(),
		Taxonomy:   item.Taxonomy,
	}
	done, err := e.env.Checkpoints.Has(item.ID, checkpoint.Assembled)
	if err != nil {
		return assembly.Job{}, fmt.Errorf("read checkpoint: %w", err)
	}
	if done && fileutil.NonEmpty(contigs) {
		logging.WithContext(services.WithStage(ctx, assembly.StageName), e.logger).
			Debug("assembly already complete", logging.String(logging.FieldEventType, "stage_skip"))
		return job, nil
	}
	if err := e.env.Checkpoints.Invalidate(item.ID, checkpoint.Assembled); err != nil {
		return assembly.Job{}, fmt.Errorf("invalidate checkpoints: %w", err)
	}
	if err := os.RemoveAll(layout.AssemblyDir()); err != nil {
		return assembly.Job{}, fmt.Errorf("remove stale assembly: %w", err)
	}

	cfg := e.env.Config
	inv := tools.RiboRun(cfg.Tools.Ribo, tools.RiboArgs{
		Reference:    item.Reference.Path,
		Forward:      item.AssemblyForward,
		Reverse:      item.AssemblyReverse,
		OutDir:       layout.AssemblyDir(),
		Subassembler: cfg.Assembly.Subassembler,
		Cores:        cfg.Assembly.Cores,
		Threads:      cfg.Assembly.Threads,
		Memory:       cfg.Assembly.Memory,
		Log:          layout.AssemblyLog(),
	})
	job.Command = &inv
	return job, nil
}
