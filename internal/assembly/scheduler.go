// Package assembly runs the assembler for every ready item on a bounded
// worker pool.
package assembly

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ribodb/internal/ledger"
	"ribodb/internal/logging"
	"ribodb/internal/services"
	"ribodb/internal/services/runner"
	"ribodb/internal/taxonomy"
)

// StageName labels assembly entries in the ledger and logs.
const StageName = "assembly"

// Job is the assembly work for one item. A nil Command means the assembly
// is already complete from an earlier run.
type Job struct {
	ItemID     string
	Command    *runner.Invocation
	OutputPath string
	LogPath    string
	Taxonomy   taxonomy.Taxonomy
}

// Outcome codes.
const (
	OutcomeOK     = 0
	OutcomeFailed = 1
)

// Result is the outcome of one job. Ran is false for jobs that were already
// complete. Err holds the tool failure when Outcome is OutcomeFailed.
type Result struct {
	Job      Job
	Ran      bool
	Err      error
	Outcome  int
	Duration time.Duration
}

// Scheduler executes jobs with at most Concurrency commands in flight.
type Scheduler struct {
	runner      runner.Runner
	ledger      *ledger.Ledger
	concurrency int
	logger      *slog.Logger
}

// NewScheduler builds a scheduler. concurrency below one is treated as one.
func NewScheduler(r runner.Runner, l *ledger.Ledger, concurrency int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:      r,
		ledger:      l,
		concurrency: max(concurrency, 1),
		logger:      logging.NewComponentLogger(logger, "assembly"),
	}
}

// Run blocks until every job has a result. results[i] belongs to jobs[i] and
// is written only by the worker that ran it. A failed command records one
// ERROR ledger entry for its item; no job failure stops the others.
func (s *Scheduler) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	var group errgroup.Group
	group.SetLimit(s.concurrency)

	pending := 0
	for i, job := range jobs {
		if job.Command == nil {
			results[i] = Result{Job: job, Outcome: OutcomeOK}
			continue
		}
		pending++
		group.Go(func() error {
			results[i] = s.runJob(ctx, job)
			return nil
		})
	}
	s.logger.Info("assembly pool started",
		logging.Int("jobs", len(jobs)),
		logging.Int("to_run", pending),
		logging.Int("concurrency", s.concurrency),
	)
	_ = group.Wait()
	s.logger.Info("assembly pool finished", logging.Int("jobs", len(jobs)))
	return results
}

func (s *Scheduler) runJob(ctx context.Context, job Job) Result {
	ctx = services.WithStage(services.WithItemID(ctx, job.ItemID), StageName)
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("assembly started", logging.String("command", job.Command.String()))

	start := time.Now()
	err := s.runner.Run(ctx, *job.Command)
	res := Result{Job: job, Ran: true, Duration: time.Since(start)}
	if err == nil {
		res.Outcome = OutcomeOK
		logger.Info("assembly finished", logging.Duration("duration", res.Duration))
		return res
	}

	res.Outcome = OutcomeFailed
	res.Err = err
	logger.Error("assembly failed", logging.Error(err), logging.String("log", job.LogPath))
	if s.ledger != nil {
		entry := ledger.Entry{Item: job.ItemID, Status: ledger.StatusError, Stage: StageName, Note: "tool error: " + err.Error()}
		if recErr := s.ledger.Record(entry); recErr != nil {
			logger.Error("ledger write failed", logging.Error(recErr))
		}
	}
	return res
}
