package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ribodb/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
	if result := CheckReadableFile("test", f); !result.Passed {
		t.Fatalf("expected readable file, got: %s", result.Detail)
	}
}

func TestCheckReadableDirectory_Unset(t *testing.T) {
	result := CheckReadableDirectory("Kraken2 database", "")
	if result.Passed || result.Detail != "not configured" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestRunAll(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = root
	cfg.Paths.GenomesDir = filepath.Join(root, "genomes")
	cfg.Taxonomy.Kraken2DB = filepath.Join(root, "db")
	cfg.Selection.SRAs = []string{"SRR1"}
	for _, dir := range []string{cfg.Paths.GenomesDir, cfg.Taxonomy.Kraken2DB} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %#v", results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", failed)
	}

	cfg.Selection.SRAs = nil
	cfg.Paths.SRAList = filepath.Join(root, "missing.txt")
	failed := Failed(RunAll(context.Background(), &cfg))
	if len(failed) != 1 || failed[0].Name != "SRA list" {
		t.Fatalf("expected SRA list failure, got %#v", failed)
	}
}

func TestCheckSystemDepsFollowsConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Selection.ExampleReads = []string{"r1.fq"}
	names := func(cfg *config.Config) []string {
		var out []string
		for _, s := range CheckSystemDeps(cfg) {
			out = append(out, s.Name)
		}
		return out
	}

	got := names(&cfg)
	if len(got) != 6 || got[0] != "plentyofbugs" {
		t.Fatalf("unexpected requirements without download: %v", got)
	}

	cfg.Selection.ExampleReads = nil
	cfg.Alignment.Enabled = true
	got = names(&cfg)
	if len(got) != 9 || got[0] != "fasterq-dump" || got[8] != "iqtree" {
		t.Fatalf("unexpected requirements with alignment: %v", got)
	}
}
