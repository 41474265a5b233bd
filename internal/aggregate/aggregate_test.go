package aggregate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ribodb/internal/checkpoint"
	"ribodb/internal/config"
	"ribodb/internal/ledger"
	"ribodb/internal/logging"
	"ribodb/internal/runenv"
	"ribodb/internal/services/runner"
	"ribodb/internal/taxonomy"
)

// contig_1: 16S on + at 3..10 (1-based), contig_2: 16S on - at 1..4.
const contigs = ">contig_1\nTTACGTACGTGG\n>contig_2\nAACCGG\n"

const gff = "##gff-version 3\n" +
	"contig_1\tbarrnap:0.9\trRNA\t3\t10\t0\t+\t.\tName=16S_rRNA;product=16S ribosomal RNA\n" +
	"contig_1\tbarrnap:0.9\trRNA\t11\t12\t0\t+\t.\tName=5S_rRNA;product=5S ribosomal RNA\n" +
	"contig_2\tbarrnap:0.9\trRNA\t1\t4\t0\t-\t.\tName=16S_rRNA;product=16S ribosomal RNA\n"

type barrnapStub struct {
	outputs map[string]string // contigs path -> gff
	calls   []string
}

func (b *barrnapStub) Run(_ context.Context, inv runner.Invocation) error {
	b.calls = append(b.calls, inv.Name)
	switch inv.Name {
	case "barrnap":
		out, ok := b.outputs[inv.Args[0]]
		if !ok {
			return errors.New("barrnap: exit status 1")
		}
		if err := os.MkdirAll(filepath.Dir(inv.Stdout), 0o755); err != nil {
			return err
		}
		return os.WriteFile(inv.Stdout, []byte(out), 0o644)
	case "seqtk", "mafft":
		data, err := os.ReadFile(inv.Args[len(inv.Args)-1])
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(inv.Stdout), 0o755); err != nil {
			return err
		}
		return os.WriteFile(inv.Stdout, data, 0o644)
	}
	return nil
}

func newEnv(t *testing.T, r runner.Runner) *runenv.Env {
	t.Helper()
	out := t.TempDir()
	l, err := ledger.Create(filepath.Join(out, runenv.LedgerFile))
	require.NoError(t, err)
	cfg := config.Default()
	return &runenv.Env{
		Config:      &cfg,
		OutputDir:   out,
		Checkpoints: checkpoint.NewMemoryStore(),
		Ledger:      l,
		Runner:      r,
		Logger:      logging.NewNop(),
	}
}

func writeContigs(t *testing.T, env *runenv.Env, item string) string {
	t.Helper()
	path := filepath.Join(env.ItemDir(item), "riboSeed", "contigs.fasta")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contigs), 0o644))
	return path
}

func escherichia() taxonomy.Taxonomy {
	return taxonomy.Taxonomy{Calls: map[taxonomy.Rank]taxonomy.Call{
		taxonomy.Domain: {Label: "Bacteria", Score: 95.73, TaxID: "2"},
		taxonomy.Genus:  {Label: "Escherichia", Score: 66.46, TaxID: "561"},
	}}
}

func TestRunExtractsRegionsAndIsolatesFailures(t *testing.T) {
	stub := &barrnapStub{outputs: map[string]string{}}
	env := newEnv(t, stub)
	good := writeContigs(t, env, "SRR1")
	bad := writeContigs(t, env, "SRR2")
	stub.outputs[good] = gff

	agg := New(env)
	require.NoError(t, agg.Reset())
	summary, err := agg.Run(context.Background(), []Input{
		{ItemID: "SRR1", Contigs: good, Taxonomy: escherichia()},
		{ItemID: "SRR2", Contigs: bad, Taxonomy: escherichia()},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Sequences)
	assert.False(t, summary.Failed())
	assert.Equal(t, ledger.StatusPass, summary.Status)

	seqs, err := os.ReadFile(env.SequencesPath())
	require.NoError(t, err)
	assert.Equal(t, ">SRR1_1 Escherichiasp.\nACGTACGT\n>SRR1_2 Escherichiasp.\nGGTT\n", string(seqs))

	table, err := os.ReadFile(env.SummaryPath())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(table)), "\n")
	require.Len(t, lines, 2)
	fields := strings.Split(lines[1], "\t")
	require.Len(t, fields, 9)
	assert.Equal(t, []string{"SRR1_2", good, "contig_2", "0", "4"}, fields[:5])
	assert.Equal(t, "Bacteria;;;;;Escherichia;", fields[5])
	assert.Equal(t, "2;0;0;0;0;561;0", fields[7])
	assert.Equal(t, "Escherichiasp.", fields[8])

	entries := env.Ledger.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.Entry{Item: "SRR2", Status: ledger.StatusError, Stage: StageName, Note: entries[0].Note}, entries[0])
	assert.Equal(t, ledger.Global, entries[1].Item)
	assert.Equal(t, ledger.StatusPass, entries[1].Status)
}

func TestRunWithNoSequencesFailsGlobally(t *testing.T) {
	env := newEnv(t, &barrnapStub{})
	summary, err := New(env).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, summary.Failed())
	entries := env.Ledger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.Entry{Item: ledger.Global, Status: ledger.StatusFail, Stage: StageName, Note: "no sequences extracted"}, entries[0])
}

func TestRunRecordsItemWithoutRegions(t *testing.T) {
	stub := &barrnapStub{outputs: map[string]string{}}
	env := newEnv(t, stub)
	path := writeContigs(t, env, "SRR3")
	stub.outputs[path] = "##gff-version 3\n"

	summary, err := New(env).Run(context.Background(), []Input{{ItemID: "SRR3", Contigs: path, Taxonomy: escherichia()}})
	require.NoError(t, err)
	assert.True(t, summary.Failed())
	assert.Equal(t, 2, env.Ledger.Count("", ledger.StatusFail))
	assert.Equal(t, 1, env.Ledger.Count(ledger.Global, ledger.StatusFail))
}

func TestSingleLineOutput(t *testing.T) {
	stub := &barrnapStub{outputs: map[string]string{}}
	env := newEnv(t, stub)
	env.Config.Output.LineWidth = 3
	path := writeContigs(t, env, "SRR4")
	stub.outputs[path] = gff

	_, err := New(env).Run(context.Background(), []Input{{ItemID: "SRR4", Contigs: path, Taxonomy: escherichia()}})
	require.NoError(t, err)
	wrapped, err := os.ReadFile(env.SequencesPath())
	require.NoError(t, err)
	assert.Contains(t, string(wrapped), "\nACG\nTAC\nGT\n")

	env.Config.Output.SingleLine = true
	agg := New(env)
	require.NoError(t, agg.Reset())
	_, err = agg.Run(context.Background(), []Input{{ItemID: "SRR4", Contigs: path, Taxonomy: escherichia()}})
	require.NoError(t, err)
	single, err := os.ReadFile(env.SequencesPath())
	require.NoError(t, err)
	assert.Equal(t, ">SRR4_1 Escherichiasp.\nACGTACGT\n>SRR4_2 Escherichiasp.\nGGTT\n", string(single))
}

func TestAlign(t *testing.T) {
	stub := &barrnapStub{outputs: map[string]string{}}
	env := newEnv(t, stub)
	agg := New(env)

	_, err := agg.Align(context.Background())
	require.Error(t, err, "alignment without sequences must fail")

	require.NoError(t, os.WriteFile(env.SequencesPath(), []byte(">a\nACGT\n>b\nACGA\n"), 0o644))
	stub.calls = nil
	tree, err := agg.Align(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.AlignmentDir(), "MSA.fasta.treefile"), tree)
	assert.Equal(t, []string{"seqtk", "mafft", "iqtree"}, stub.calls)
}
