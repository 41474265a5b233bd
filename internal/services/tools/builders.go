package tools

import (
	"path/filepath"
	"strconv"

	"ribodb/internal/services/runner"
)

// FasterqDump downloads an accession's reads into outDir as ACC_1.fastq
// (and ACC_2.fastq for paired runs).
func FasterqDump(binary, accession string, threads int, outDir string) runner.Invocation {
	return runner.Invocation{
		Name:   "fasterq-dump",
		Binary: binary,
		Args: []string{
			accession,
			"--threads", strconv.Itoa(max(threads, 1)),
			"-O", outDir,
			"--split-files",
		},
		Log: filepath.Join(outDir, "fasterq-dump.log"),
	}
}

// PlentyofbugsArgs configures reference selection.
type PlentyofbugsArgs struct {
	GenomesDir   string
	Reads        string
	OutDir       string
	Downsampling int
}

// Plentyofbugs selects the closest reference genome; the result lands in
// OutDir/best_reference.
func Plentyofbugs(binary string, a PlentyofbugsArgs) runner.Invocation {
	args := []string{"-g", a.GenomesDir, "-f", a.Reads, "-o", a.OutDir}
	if a.Downsampling > 0 {
		args = append(args, "--downsampling_ammount", strconv.Itoa(a.Downsampling))
	}
	return runner.Invocation{
		Name:   "plentyofbugs",
		Binary: binary,
		Args:   args,
		Log:    filepath.Join(filepath.Dir(a.OutDir), "plentyofbugs.log"),
	}
}

// Kraken2Args configures classification.
type Kraken2Args struct {
	DB      string
	Threads int
	Report  string
	Output  string
	Forward string
	Reverse string
	Log     string
}

func Kraken2(binary string, a Kraken2Args) runner.Invocation {
	args := []string{
		"--db", a.DB,
		"--threads", strconv.Itoa(max(a.Threads, 1)),
		"--report", a.Report,
		"--output", a.Output,
	}
	if a.Reverse != "" {
		args = append(args, "--paired", a.Forward, a.Reverse)
	} else {
		args = append(args, a.Forward)
	}
	return runner.Invocation{Name: "kraken2", Binary: binary, Args: args, Log: a.Log}
}

// SickleArgs configures quality trimming. Reverse empty means single-end.
type SickleArgs struct {
	Quality    string
	Forward    string
	Reverse    string
	OutForward string
	OutReverse string
	OutSingles string
	Log        string
}

func Sickle(binary string, a SickleArgs) runner.Invocation {
	quality := a.Quality
	if quality == "" {
		quality = "sanger"
	}
	var args []string
	if a.Reverse == "" {
		args = []string{"se", "-f", a.Forward, "-t", quality, "-o", a.OutForward}
	} else {
		args = []string{
			"pe",
			"-f", a.Forward, "-r", a.Reverse,
			"-t", quality,
			"-o", a.OutForward, "-p", a.OutReverse,
			"-s", a.OutSingles,
		}
	}
	return runner.Invocation{Name: "sickle", Binary: binary, Args: args, Log: a.Log}
}

// SeqtkSample writes a seeded random fraction of input to output.
func SeqtkSample(binary, input string, fraction float64, seed int, output string) runner.Invocation {
	return runner.Invocation{
		Name:   "seqtk",
		Binary: binary,
		Args: []string{
			"sample",
			"-s" + strconv.Itoa(seed),
			input,
			strconv.FormatFloat(fraction, 'f', -1, 64),
		},
		Stdout: output,
	}
}

// SeqtkSeq normalizes a FASTA file to one line per sequence.
func SeqtkSeq(binary, input, output string) runner.Invocation {
	return runner.Invocation{
		Name:   "seqtk",
		Binary: binary,
		Args:   []string{"seq", "-S", input},
		Stdout: output,
	}
}

// RiboArgs configures the assembly. Reverse empty means single-end.
type RiboArgs struct {
	Reference    string
	Forward      string
	Reverse      string
	OutDir       string
	Subassembler string
	Cores        int
	Threads      int
	Memory       int
	Log          string
}

// RiboRun builds the riboSeed invocation. Its contigs end up at
// OutDir/seed/final_long_reads/riboSeedContigs.fasta.
func RiboRun(binary string, a RiboArgs) runner.Invocation {
	args := []string{"run", "-r", a.Reference}
	if a.Reverse != "" {
		args = append(args, "-F", a.Forward, "-R", a.Reverse)
	} else {
		args = append(args, "-S1", a.Forward)
	}
	args = append(args,
		"--cores", strconv.Itoa(max(a.Cores, 1)),
		"--threads", strconv.Itoa(max(a.Threads, 1)),
		"-v", "1",
		"--serialize",
		"-o", a.OutDir,
		"--subassembler", a.Subassembler,
		"--stages", "score",
		"--memory", strconv.Itoa(max(a.Memory, 1)),
	)
	return runner.Invocation{Name: "riboSeed", Binary: binary, Args: args, Log: a.Log}
}

// ContigsPath is where RiboRun leaves its final contigs.
func ContigsPath(outDir string) string {
	return filepath.Join(outDir, "seed", "final_long_reads", "riboSeedContigs.fasta")
}

// Barrnap annotates rRNA genes in fasta, writing GFF to output.
func Barrnap(binary, fasta, output string) runner.Invocation {
	return runner.Invocation{
		Name:   "barrnap",
		Binary: binary,
		Args:   []string{fasta},
		Stdout: output,
	}
}

// Mafft aligns input into output.
func Mafft(binary, input, output string) runner.Invocation {
	return runner.Invocation{
		Name:   "mafft",
		Binary: binary,
		Args:   []string{input},
		Stdout: output,
	}
}

// IQTree builds a tree next to the alignment (alignment.treefile).
func IQTree(binary, alignment, log string) runner.Invocation {
	return runner.Invocation{
		Name:   "iqtree",
		Binary: binary,
		Args:   []string{"-s", alignment, "-nt", "AUTO"},
		Stdout: log,
	}
}
