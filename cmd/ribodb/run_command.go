package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ribodb/internal/config"
	"ribodb/internal/deps"
	"ribodb/internal/logging"
	"ribodb/internal/preflight"
	"ribodb/internal/services/runner"
	"ribodb/internal/workflow"
)

// errRunFailed marks a run that completed without usable output.
var errRunFailed = errors.New("run produced no usable output")

type runOptions struct {
	outputDir    string
	genomesDir   string
	organism     string
	sras         []string
	sraList      string
	nstrains     int
	getAll       bool
	exampleReads []string
	kraken2DB    string
	maxDistance  float64
	approxLength int
	minCoverage  float64
	maxCoverage  float64
	subassembler string
	cores        int
	threads      int
	memory       int
	concurrency  int
	singleLine   bool
	align        bool
	checkRDNA    bool
	logLevel     string
	skipChecks   bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process candidate accessions and extract 16S sequences",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd.Flags(), cfg); err != nil {
				return err
			}
			if err := cfg.Finalize(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !opts.skipChecks {
				if err := runPreflight(cmd, cfg); err != nil {
					return err
				}
			}

			logger, err := logging.NewFromConfig(cfg, cfg.Paths.OutputDir)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			manager := workflow.NewManager(cfg, logger,
				workflow.WithRunner(runner.New(runner.WithLogger(logger))),
				workflow.WithConfigPath(ctx.configPath),
			)
			summary, err := manager.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Run %s: %d items, %d ready for assembly, %d assembled, %d sequences\n",
				summary.RunID, summary.Items, summary.Ready, summary.Assembled, summary.Sequences)
			if summary.Tree != "" {
				fmt.Fprintf(out, "Tree: %s\n", summary.Tree)
			}
			if summary.Failed() {
				reason := summary.Fatal
				if reason == "" {
					reason = "no sequences extracted"
				}
				return fmt.Errorf("%w: %s", errRunFailed, reason)
			}
			return nil
		},
	}

	bindRunFlags(cmd.Flags(), opts)
	return cmd
}

func bindRunFlags(f *pflag.FlagSet, opts *runOptions) {
	f.StringVarP(&opts.outputDir, "output-dir", "o", "", "Output directory")
	f.StringVarP(&opts.genomesDir, "genomes-dir", "g", "", "Directory of candidate reference genomes")
	f.StringVarP(&opts.organism, "organism", "n", "", "Organism name used to filter the sraFind table")
	f.StringSliceVar(&opts.sras, "sra", nil, "Accessions to process (repeatable)")
	f.StringVar(&opts.sraList, "sra-list", "", "File with one accession per line")
	f.IntVar(&opts.nstrains, "nstrains", 0, "Number of sraFind strains to sample (0 keeps all)")
	f.BoolVar(&opts.getAll, "get-all", false, "Use every run of each selected biosample")
	f.StringSliceVar(&opts.exampleReads, "example-reads", nil, "Local forward and optional reverse reads")
	f.StringVar(&opts.kraken2DB, "kraken2-db", "", "Kraken2 database directory")
	f.Float64Var(&opts.maxDistance, "maxdist", 0, "Maximum mash distance to the chosen reference")
	f.IntVar(&opts.approxLength, "approx-length", 0, "Genome length used for coverage (0 uses the reference)")
	f.Float64Var(&opts.minCoverage, "mincov", 0, "Minimum coverage")
	f.Float64Var(&opts.maxCoverage, "maxcov", 0, "Coverage above which reads are downsampled")
	f.StringVar(&opts.subassembler, "subassembler", "", "riboSeed subassembler (spades or skesa)")
	f.IntVar(&opts.cores, "cores", 0, "Cores per tool")
	f.IntVar(&opts.threads, "threads", 0, "Threads per assembly")
	f.IntVar(&opts.memory, "memory", 0, "Memory per assembly in GB")
	f.IntVar(&opts.concurrency, "concurrency", 0, "Assemblies run at once")
	f.BoolVar(&opts.singleLine, "single-line", false, "Write each sequence on one line")
	f.BoolVar(&opts.align, "align", false, "Align extracted sequences and build a tree")
	f.BoolVar(&opts.checkRDNA, "check-rdna", false, "Reject references with fewer than two 16S copies")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.BoolVar(&opts.skipChecks, "skip-checks", false, "Skip the required-program checks")
}

// apply copies every explicitly set flag onto cfg.
func (o *runOptions) apply(flags *pflag.FlagSet, cfg *config.Config) error {
	set := func(name string, fn func()) {
		if flags.Changed(name) {
			fn()
		}
	}
	set("output-dir", func() { cfg.Paths.OutputDir = o.outputDir })
	set("genomes-dir", func() { cfg.Paths.GenomesDir = o.genomesDir })
	set("organism", func() { cfg.Selection.OrganismName = o.organism })
	set("sra", func() { cfg.Selection.SRAs = o.sras })
	set("sra-list", func() { cfg.Paths.SRAList = o.sraList })
	set("nstrains", func() { cfg.Selection.NStrains = o.nstrains })
	set("get-all", func() { cfg.Selection.GetAll = o.getAll })
	set("example-reads", func() { cfg.Selection.ExampleReads = o.exampleReads })
	set("kraken2-db", func() { cfg.Taxonomy.Kraken2DB = o.kraken2DB })
	set("maxdist", func() { cfg.Reference.MaxDistance = o.maxDistance })
	set("approx-length", func() { cfg.Reference.ApproxLength = o.approxLength })
	set("mincov", func() { cfg.Coverage.Min = o.minCoverage })
	set("maxcov", func() { cfg.Coverage.Max = o.maxCoverage })
	set("subassembler", func() { cfg.Assembly.Subassembler = o.subassembler })
	set("cores", func() { cfg.Assembly.Cores = o.cores })
	set("threads", func() { cfg.Assembly.Threads = o.threads })
	set("memory", func() { cfg.Assembly.Memory = o.memory })
	set("concurrency", func() { cfg.Assembly.Concurrency = o.concurrency })
	set("single-line", func() { cfg.Output.SingleLine = o.singleLine })
	set("align", func() { cfg.Alignment.Enabled = o.align })
	set("check-rdna", func() { cfg.Reference.CheckRDNACopies = o.checkRDNA })
	set("log-level", func() { cfg.Logging.Level = o.logLevel })

	if flags.Changed("nstrains") && o.nstrains < 0 {
		return fmt.Errorf("--nstrains must not be negative")
	}
	return nil
}

// runPreflight refuses to start when a path or required program is missing.
func runPreflight(cmd *cobra.Command, cfg *config.Config) error {
	var problems []string
	for _, r := range preflight.Failed(preflight.RunAll(cmd.Context(), cfg)) {
		problems = append(problems, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	if err := deps.MissingError(preflight.CheckSystemDeps(cfg)); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("preflight checks failed (see \"ribodb check\"): %s", strings.Join(problems, "; "))
}
