package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pelletier/go-toml/v2"

	"ribodb/internal/config"
)

func TestLoadDefaultConfigUsesEnvKrakenDBAndExpandsPaths(t *testing.T) {
	t.Setenv("KRAKEN2_DEFAULT_DB", "/db/kraken")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "ribodb", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if cfg.Taxonomy.Kraken2DB != "/db/kraken" {
		t.Fatalf("expected kraken2 db from env, got %q", cfg.Taxonomy.Kraken2DB)
	}
	if !filepath.IsAbs(cfg.Paths.OutputDir) {
		t.Fatalf("expected absolute output dir, got %q", cfg.Paths.OutputDir)
	}
	if cfg.Tools.Sickle != "sickle" || cfg.Tools.SickleQuality != "sanger" {
		t.Fatalf("unexpected tool defaults: %+v", cfg.Tools)
	}
	if cfg.Coverage.Max != 50 || cfg.Coverage.Seed != 100 {
		t.Fatalf("unexpected coverage defaults: %+v", cfg.Coverage)
	}
}

func TestLoadCustomConfigOverridesValues(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("KRAKEN2_DEFAULT_DB", "/ignored")

	path := filepath.Join(t.TempDir(), "ribodb.toml")
	content := `
[paths]
output_dir = "~/runs"
genomes_dir = "~/genomes"

[selection]
sras = [" SRR1 ", "", "SRR2"]

[taxonomy]
kraken2_db = "/db/standard"

[assembly]
subassembler = "SKESA"
concurrency = 0

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "runs") {
		t.Fatalf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
	if diff := cmp.Diff([]string{"SRR1", "SRR2"}, cfg.Selection.SRAs); diff != "" {
		t.Fatalf("sras mismatch (-want +got):\n%s", diff)
	}
	if cfg.Taxonomy.Kraken2DB != "/db/standard" {
		t.Fatalf("expected configured db to win over env, got %q", cfg.Taxonomy.Kraken2DB)
	}
	if cfg.Assembly.Subassembler != "skesa" || cfg.Assembly.Concurrency != 1 {
		t.Fatalf("unexpected assembly settings: %+v", cfg.Assembly)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"coverage bounds", func(c *config.Config) { c.Coverage.Min = 80 }, "coverage.min"},
		{"read bounds", func(c *config.Config) { c.Reads.MinLength = 400 }, "reads.min_length"},
		{"subassembler", func(c *config.Config) { c.Assembly.Subassembler = "megahit" }, "assembly.subassembler"},
		{"max distance", func(c *config.Config) { c.Reference.MaxDistance = 2 }, "reference.max_distance"},
		{"example reads", func(c *config.Config) { c.Selection.ExampleReads = []string{"a", "b", "c"} }, "example_reads"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestFingerprintTracksEveryKey(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.GenomesDir = "/genomes"
	cfg.Reference.MaxDistance = 0.05
	fp := cfg.Fingerprint()

	for _, key := range config.TrackedKeys {
		if _, ok := fp[key]; !ok {
			t.Fatalf("fingerprint missing key %q", key)
		}
	}
	if len(fp) != len(config.TrackedKeys) {
		t.Fatalf("fingerprint has %d keys, want %d", len(fp), len(config.TrackedKeys))
	}
	if fp[config.KeyMaxDistance] != "0.05" || fp[config.KeyMaxCoverage] != "50" {
		t.Fatalf("unexpected formatting: %v", fp)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Assembly.Subassembler != "spades" || cfg.Selection.NStrains != 10 {
		t.Fatalf("unexpected sample values: %+v", cfg)
	}
}
