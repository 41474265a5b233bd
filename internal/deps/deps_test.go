package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to resolve to %s, got %#v", present, results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func TestMissingIgnoresOptional(t *testing.T) {
	statuses := []Status{
		{Name: "kraken2", Command: "kraken2", Available: true},
		{Name: "mafft", Command: "mafft", Optional: true},
		{Name: "ribo", Command: "ribo"},
	}
	missing := Missing(statuses)
	if len(missing) != 1 || missing[0].Name != "ribo" {
		t.Fatalf("unexpected missing set: %#v", missing)
	}
	err := MissingError(statuses)
	if err == nil || err.Error() != "missing required programs: ribo" {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := MissingError(statuses[:2]); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
