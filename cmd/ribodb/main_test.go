package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"ribodb/internal/checkpoint"
	"ribodb/internal/config"
	"ribodb/internal/history"
	"ribodb/internal/ledger"
	"ribodb/internal/runenv"
)

type cliTestEnv struct {
	configPath string
	outputDir  string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	t.Chdir(base)
	t.Setenv("HOME", filepath.Join(base, "home"))

	out := filepath.Join(base, "out")
	genomes := filepath.Join(base, "genomes")
	if err := os.MkdirAll(genomes, 0o755); err != nil {
		t.Fatalf("mkdir genomes: %v", err)
	}
	configPath := filepath.Join(base, "ribodb.toml")
	content := "[paths]\noutput_dir = \"" + out + "\"\ngenomes_dir = \"" + genomes + "\"\n\n[taxonomy]\nkraken2_db = \"" + base + "\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliTestEnv{configPath: configPath, outputDir: out}
}

func runCLI(t *testing.T, args []string, configPath string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}

	out, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# loaded from "+env.configPath)
	requireContains(t, out, env.outputDir)
	requireContains(t, out, "spades")
}

func TestStatusShowsMarkersAndLedger(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "No items under")

	store := checkpoint.NewFileStore(env.outputDir)
	for _, m := range []checkpoint.Marker{checkpoint.ReferenceSelected, checkpoint.TaxonomyAssigned} {
		if err := store.Complete("SRR42", m); err != nil {
			t.Fatal(err)
		}
	}
	l, err := ledger.Create(filepath.Join(env.outputDir, runenv.LedgerFile))
	if err != nil {
		t.Fatal(err)
	}
	_ = l.Record(ledger.Entry{Item: "SRR42", Status: ledger.StatusFail, Stage: "downsample", Note: "coverage 3.00 below minimum 10"})
	_ = l.Record(ledger.Entry{Item: ledger.Global, Status: ledger.StatusFail, Stage: "aggregate", Note: "no sequences extracted"})

	out, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "SRR42")
	requireContains(t, out, "Reference Selected")
	requireContains(t, out, "Last run: FAIL (no sequences extracted); item entries: 0 PASS, 1 FAIL, 0 ERROR")
}

func TestHistoryListsRunsAndItems(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.MkdirAll(env.outputDir, 0o755); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	ctx := context.Background()
	store, err := history.Open(ctx, filepath.Join(env.outputDir, runenv.HistoryFile))
	if err != nil {
		t.Fatal(err)
	}
	id := uuid.New()
	now := time.Now()
	err = store.RecordRun(ctx, history.Run{ID: id, StartedAt: now, FinishedAt: now.Add(time.Minute), Status: ledger.StatusPass, Items: 3, Sequences: 5},
		[]ledger.Entry{{Item: "SRR7", Status: ledger.StatusPass, Stage: "assembly", Note: "contigs ready"}})
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	out, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, id.String()[:8])
	requireContains(t, out, "1m0s")

	out, err = runCLI(t, []string{"history", "SRR7"}, env.configPath)
	if err != nil {
		t.Fatalf("history item: %v", err)
	}
	requireContains(t, out, "contigs ready")
}

func TestCheckReportsMissingPrograms(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("PATH", t.TempDir())

	out, err := runCLI(t, []string{"check"}, env.configPath)
	if err == nil {
		t.Fatal("expected check to fail without programs on PATH")
	}
	requireContains(t, out, "== Programs ==")
	requireContains(t, out, "[MISSING]")
	requireContains(t, out, "Output directory")
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	cfg := config.Default()
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	opts := &runOptions{}
	bindRunFlags(flags, opts)
	if err := flags.Parse([]string{"--maxcov", "80", "--sra", "SRR1,SRR2", "--align", "--subassembler", "SKESA"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if err := opts.apply(flags, &cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Coverage.Max != 80 || !cfg.Alignment.Enabled || len(cfg.Selection.SRAs) != 2 {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Coverage.Min != 10 {
		t.Fatalf("unset flag should keep config value, got mincov %v", cfg.Coverage.Min)
	}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if cfg.Assembly.Subassembler != "skesa" {
		t.Fatalf("expected normalized subassembler, got %q", cfg.Assembly.Subassembler)
	}

	bad := pflag.NewFlagSet("run", pflag.ContinueOnError)
	badOpts := &runOptions{}
	bindRunFlags(bad, badOpts)
	_ = bad.Parse([]string{"--nstrains=-1"})
	if err := badOpts.apply(bad, &cfg); err == nil {
		t.Fatal("expected negative nstrains to be rejected")
	}
}

func TestMarkerLabel(t *testing.T) {
	if got := markerLabel(checkpoint.TaxonomyAssigned); got != "Taxonomy Assigned" {
		t.Fatalf("markerLabel = %q", got)
	}
}
