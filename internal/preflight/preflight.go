package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"ribodb/internal/config"
	"ribodb/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result

	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	results = append(results, CheckReadableDirectory("Reference genomes", cfg.Paths.GenomesDir))
	results = append(results, CheckReadableDirectory("Kraken2 database", cfg.Taxonomy.Kraken2DB))

	for _, path := range cfg.Selection.ExampleReads {
		results = append(results, CheckReadableFile("Example reads", path))
	}
	if len(cfg.Selection.ExampleReads) == 0 && len(cfg.Selection.SRAs) == 0 {
		switch {
		case cfg.Paths.SRAList != "":
			results = append(results, CheckReadableFile("SRA list", cfg.Paths.SRAList))
		case cfg.Paths.SRAFind != "":
			results = append(results, CheckReadableFile("sraFind table", cfg.Paths.SRAFind))
		}
	}
	if err := ctx.Err(); err != nil {
		results = append(results, Result{Name: "Preflight", Detail: err.Error()})
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that the directory exists and can be listed.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

func checkDirectory(name, path string, mode uint32, ok string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, ok)}
}

// CheckReadableFile verifies that path is a readable regular file.
func CheckReadableFile(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckSystemDeps evaluates every external program the config invokes.
// Both "ribodb run" and "ribodb check" use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	t := cfg.Tools
	var requirements []deps.Requirement
	if len(cfg.Selection.ExampleReads) == 0 {
		requirements = append(requirements, deps.Requirement{
			Name: "fasterq-dump", Command: t.FasterqDump, Description: "Required to download SRA reads",
		})
	}
	requirements = append(requirements,
		deps.Requirement{Name: "plentyofbugs", Command: t.Plentyofbugs, Description: "Required for reference selection"},
		deps.Requirement{Name: "kraken2", Command: t.Kraken2, Description: "Required for taxonomic assignment"},
		deps.Requirement{Name: "sickle", Command: t.Sickle, Description: "Required for quality trimming"},
		deps.Requirement{Name: "seqtk", Command: t.Seqtk, Description: "Required for downsampling"},
		deps.Requirement{Name: "riboSeed", Command: t.Ribo, Description: "Required for assembly"},
		deps.Requirement{Name: "barrnap", Command: t.Barrnap, Description: "Required for 16S annotation"},
	)
	if cfg.Alignment.Enabled {
		requirements = append(requirements,
			deps.Requirement{Name: "mafft", Command: t.Mafft, Description: "Required for alignment"},
			deps.Requirement{Name: "iqtree", Command: t.IQTree, Description: "Required for tree building"},
		)
	}
	return deps.CheckBinaries(requirements)
}
