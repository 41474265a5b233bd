package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"ribodb/internal/aggregate"
	"ribodb/internal/assembly"
	"ribodb/internal/checkpoint"
	"ribodb/internal/config"
	"ribodb/internal/fileutil"
	"ribodb/internal/history"
	"ribodb/internal/ledger"
	"ribodb/internal/logging"
	"ribodb/internal/pipeline"
	"ribodb/internal/runenv"
	"ribodb/internal/services"
	"ribodb/internal/services/runner"
)

// StageSetup labels global entries written before any item runs.
const StageSetup = "setup"

// ErrLocked reports that another run holds the output root.
var ErrLocked = errors.New("output directory is locked by another run")

// Summary is the outcome of one run.
type Summary struct {
	RunID     uuid.UUID
	Items     int
	Ready     int
	Assembled int
	Sequences int
	Status    ledger.Status
	// Fatal is set when the run stopped before processing items.
	Fatal string
	// Tree is the alignment tree path when alignment ran.
	Tree string
}

// Failed reports whether the run produced no usable output.
func (s Summary) Failed() bool {
	return s.Fatal != "" || s.Sequences == 0
}

// Manager coordinates one run.
type Manager struct {
	cfg        *config.Config
	logger     *slog.Logger
	runner     runner.Runner
	configPath string
	now        func() time.Time
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithRunner replaces the external tool runner (used in tests).
func WithRunner(r runner.Runner) Option {
	return func(m *Manager) { m.runner = r }
}

// WithConfigPath records the config file the run was loaded from.
func WithConfigPath(path string) Option {
	return func(m *Manager) { m.configPath = path }
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "workflow"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.runner == nil {
		m.runner = runner.New(runner.WithLogger(logger))
	}
	return m
}

// Run executes the pipeline once. The returned error covers conditions that
// prevent a ledger from being written at all (lock held, unwritable output,
// cancellation); every other outcome is reported through the Summary.
func (m *Manager) Run(ctx context.Context) (summary Summary, err error) {
	if err := m.cfg.EnsureDirectories(); err != nil {
		return Summary{}, err
	}
	outputDir := m.cfg.Paths.OutputDir
	env := &runenv.Env{
		Config:      m.cfg,
		OutputDir:   outputDir,
		Checkpoints: checkpoint.NewFileStore(outputDir),
		Runner:      m.runner,
	}

	lock := flock.New(env.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return Summary{}, fmt.Errorf("%w: %s", ErrLocked, lock.Path())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			m.logger.Warn("failed to release output lock", logging.Error(err))
		}
	}()

	runID := uuid.New()
	ctx = services.WithRequestID(ctx, runID.String())
	logger := logging.WithContext(ctx, m.logger)
	started := m.now()

	env.Logger = logger
	env.RunID = runID.String()
	env.Ledger, err = ledger.Create(env.LedgerPath())
	if err != nil {
		return Summary{}, fmt.Errorf("create ledger: %w", err)
	}
	agg := aggregate.New(env)
	if err := agg.Reset(); err != nil {
		return Summary{}, err
	}
	logger.Info("run started",
		logging.String("output_dir", outputDir),
		logging.String(logging.FieldEventType, "run_start"),
	)

	summary = Summary{RunID: runID}
	defer func() {
		m.recordHistory(ctx, env, summary, started)
	}()

	items, err := m.expandItems()
	if err != nil {
		return m.fatal(env, summary, err.Error()), nil
	}
	summary.Items = len(items)
	if len(items) == 0 {
		return m.fatal(env, summary, "no candidate items"), nil
	}
	ok, err := fileutil.DirHasEntries(m.cfg.Paths.GenomesDir)
	if err != nil {
		return m.fatal(env, summary, fmt.Sprintf("read genomes directory: %v", err)), nil
	}
	if !ok {
		return m.fatal(env, summary, "no reference genomes"), nil
	}

	if err := m.applyFingerprint(env, items); err != nil {
		return summary, err
	}

	jobs, err := m.processItems(ctx, env, items)
	if err != nil {
		return summary, err
	}
	summary.Ready = len(jobs)

	scheduler := assembly.NewScheduler(env.Runner, env.Ledger, m.cfg.Assembly.Concurrency, logger)
	results := scheduler.Run(ctx, jobs)
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	inputs := m.reconcile(env, results)
	summary.Assembled = len(inputs)

	aggSummary, err := agg.Run(ctx, inputs)
	if err != nil {
		return summary, err
	}
	summary.Sequences = aggSummary.Sequences
	summary.Status = aggSummary.Status

	if m.cfg.Alignment.Enabled && !aggSummary.Failed() {
		summary.Tree = m.align(ctx, env, agg)
	}

	logger.Info("run finished",
		logging.Int("items", summary.Items),
		logging.Int("assembled", summary.Assembled),
		logging.Int("sequences", summary.Sequences),
		logging.String("status", string(summary.Status)),
		logging.Duration("duration", m.now().Sub(started)),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	return summary, nil
}

// fatal writes the single global FAIL entry for a run that cannot proceed.
func (m *Manager) fatal(env *runenv.Env, summary Summary, note string) Summary {
	summary.Fatal = note
	summary.Status = ledger.StatusFail
	m.logger.Error("run cannot proceed", logging.String("reason", note))
	if err := env.Record(ledger.Entry{Item: ledger.Global, Status: ledger.StatusFail, Stage: StageSetup, Note: note}); err != nil {
		m.logger.Error("ledger write failed", logging.Error(err))
	}
	return summary
}

// processItems runs the sequential stages for every item in order.
func (m *Manager) processItems(ctx context.Context, env *runenv.Env, items []*pipeline.Item) ([]assembly.Job, error) {
	exec := pipeline.NewExecutor(env)
	jobs := make([]assembly.Job, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		job, err := exec.Process(ctx, item)
		if err == nil {
			jobs = append(jobs, job)
			continue
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		status := services.LedgerStatus(err)
		itemLogger := logging.WithContext(services.WithItemID(ctx, item.ID), m.logger)
		if status == ledger.StatusError {
			itemLogger.Error("item failed", logging.Error(err), logging.String("stage", services.StageOf(err)))
		} else {
			itemLogger.Warn("item rejected", logging.Error(err), logging.String("stage", services.StageOf(err)))
		}
		if recErr := env.Record(ledger.Entry{Item: item.ID, Status: status, Stage: services.StageOf(err), Note: err.Error()}); recErr != nil {
			return nil, fmt.Errorf("record ledger entry: %w", recErr)
		}
	}
	return jobs, nil
}

// reconcile turns scheduler results into ledger entries and marks finished
// assemblies. It returns the aggregation inputs in job order.
func (m *Manager) reconcile(env *runenv.Env, results []assembly.Result) []aggregate.Input {
	var inputs []aggregate.Input
	for _, res := range results {
		job := res.Job
		if fileutil.NonEmpty(job.OutputPath) {
			if err := env.Checkpoints.Complete(job.ItemID, checkpoint.Assembled); err != nil {
				m.logger.Error("checkpoint write failed", logging.String("item", job.ItemID), logging.Error(err))
			}
			note := "contigs ready"
			if !res.Ran {
				note = "assembled in an earlier run"
			}
			m.record(env, ledger.Entry{Item: job.ItemID, Status: ledger.StatusPass, Stage: assembly.StageName, Note: note})
			inputs = append(inputs, aggregate.Input{ItemID: job.ItemID, Contigs: job.OutputPath, Taxonomy: job.Taxonomy})
			continue
		}
		if res.Err != nil {
			// the scheduler already recorded the tool error
			continue
		}
		m.record(env, ledger.Entry{Item: job.ItemID, Status: ledger.StatusFail, Stage: assembly.StageName, Note: "ran but produced no usable result"})
	}
	return inputs
}

func (m *Manager) align(ctx context.Context, env *runenv.Env, agg *aggregate.Aggregator) string {
	tree, err := agg.Align(ctx)
	if err != nil {
		m.logger.Error("alignment failed", logging.Error(err))
		m.record(env, ledger.Entry{Item: aggregate.AlignmentItem, Status: ledger.StatusError, Stage: aggregate.AlignmentItem, Note: err.Error()})
		return ""
	}
	return tree
}

func (m *Manager) record(env *runenv.Env, entry ledger.Entry) {
	if err := env.Record(entry); err != nil {
		m.logger.Error("ledger write failed", logging.Error(err))
	}
}

// recordHistory stores the run. History is best effort: a failure is logged
// and never changes the run outcome.
func (m *Manager) recordHistory(ctx context.Context, env *runenv.Env, summary Summary, started time.Time) {
	ctx = context.WithoutCancel(ctx)
	store, err := history.Open(ctx, env.HistoryPath())
	if err != nil {
		m.logger.Warn("history unavailable", logging.Error(err))
		return
	}
	defer store.Close()

	status := summary.Status
	if status == "" {
		status = ledger.StatusError
	}
	run := history.Run{
		ID:         summary.RunID,
		StartedAt:  started,
		FinishedAt: m.now(),
		Status:     status,
		Items:      summary.Items,
		Sequences:  summary.Sequences,
		ConfigPath: m.configPath,
	}
	if err := store.RecordRun(ctx, run, env.Ledger.Entries()); err != nil {
		m.logger.Warn("history write failed", logging.Error(err))
	}
}
