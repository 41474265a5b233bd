package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ribodb/internal/ledger"
)

// Run is one pipeline invocation.
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Status     ledger.Status
	Items      int
	Sequences  int
	ConfigPath string
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ItemRecord is one ledger entry of an item, tagged with its run.
type ItemRecord struct {
	RunID     uuid.UUID
	StartedAt time.Time
	Entry     ledger.Entry
}

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// RecordRun stores the run and its ledger entries in one transaction.
func (s *Store) RecordRun(ctx context.Context, run Run, entries []ledger.Entry) error {
	if run.ID == uuid.Nil {
		return errors.New("run id is required")
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin run tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, started_at, finished_at, status, items, sequences, config_path)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID.String(),
			formatTime(run.StartedAt),
			formatTime(run.FinishedAt),
			string(run.Status),
			run.Items,
			run.Sequences,
			nullableString(run.ConfigPath),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO run_entries (run_id, position, item, status, stage, note) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare entry insert: %w", err)
		}
		defer stmt.Close()
		for i, e := range entries {
			if _, err := stmt.ExecContext(ctx, run.ID.String(), i, e.Item, string(e.Status),
				nullableString(e.Stage), nullableString(e.Note)); err != nil {
				return fmt.Errorf("insert entry %d: %w", i, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit run: %w", err)
		}
		return nil
	})
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, status, items, sequences, config_path
              FROM runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Entries returns the ledger entries of one run in recorded order.
func (s *Store) Entries(ctx context.Context, runID uuid.UUID) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item, status, stage, note FROM run_entries WHERE run_id = ? ORDER BY position`,
		runID.String())
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var (
			e      ledger.Entry
			status string
			stage  sql.NullString
			note   sql.NullString
		)
		if err := rows.Scan(&e.Item, &status, &stage, &note); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Status = ledger.Status(status)
		e.Stage = stage.String
		e.Note = note.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// ItemHistory returns every entry recorded for item, newest run first.
func (s *Store) ItemHistory(ctx context.Context, item string) ([]ItemRecord, error) {
	item = strings.TrimSpace(item)
	if item == "" {
		return nil, errors.New("item id is required")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.run_id, r.started_at, e.item, e.status, e.stage, e.note
         FROM run_entries e JOIN runs r ON r.id = e.run_id
         WHERE e.item = ?
         ORDER BY r.started_at DESC, e.position`,
		item)
	if err != nil {
		return nil, fmt.Errorf("item history: %w", err)
	}
	defer rows.Close()

	var out []ItemRecord
	for rows.Next() {
		var (
			rec     ItemRecord
			runID   string
			started string
			status  string
			stage   sql.NullString
			note    sql.NullString
		)
		if err := rows.Scan(&runID, &started, &rec.Entry.Item, &status, &stage, &note); err != nil {
			return nil, fmt.Errorf("scan item history: %w", err)
		}
		id, err := uuid.Parse(runID)
		if err != nil {
			return nil, fmt.Errorf("parse run id %q: %w", runID, err)
		}
		rec.RunID = id
		rec.StartedAt, _ = parseTimeString(started)
		rec.Entry.Status = ledger.Status(status)
		rec.Entry.Stage = stage.String
		rec.Entry.Note = note.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run        Run
		id         string
		startedRaw string
		finished   string
		status     string
		configPath sql.NullString
	)
	if err := scanner.Scan(&id, &startedRaw, &finished, &status, &run.Items, &run.Sequences, &configPath); err != nil {
		return Run{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Run{}, fmt.Errorf("parse run id %q: %w", id, err)
	}
	run.ID = parsed
	run.Status = ledger.Status(status)
	run.ConfigPath = configPath.String
	if t, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = t
	}
	if t, err := parseTimeString(finished); err == nil {
		run.FinishedAt = t
	}
	return run, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
