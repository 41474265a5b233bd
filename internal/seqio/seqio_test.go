package seqio

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFastq(t *testing.T, path string, lengths ...int) {
	t.Helper()
	var b strings.Builder
	for i, n := range lengths {
		b.WriteString("@read")
		b.WriteString(strings.Repeat("x", i))
		b.WriteString("\n")
		b.WriteString(strings.Repeat("A", n))
		b.WriteString("\n+\n")
		b.WriteString(strings.Repeat("I", n))
		b.WriteString("\n")
	}
	data := []byte(b.String())
	if strings.HasSuffix(path, ".gz") {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}
		data = buf.Bytes()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAverageReadLengthUsesFirstN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reads.fastq")
	writeFastq(t, path, 100, 150, 50, 1000)

	got, err := AverageReadLength(path, 3)
	if err != nil {
		t.Fatalf("AverageReadLength: %v", err)
	}
	if got != 100 {
		t.Fatalf("got %v, want 100", got)
	}
}

func TestAverageReadLengthGzipAndShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reads.fastq.gz")
	writeFastq(t, path, 80, 120)

	got, err := AverageReadLength(path, 30)
	if err != nil {
		t.Fatalf("AverageReadLength: %v", err)
	}
	if got != 100 {
		t.Fatalf("got %v, want 100", got)
	}
}

func TestAverageReadLengthEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.fastq")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := AverageReadLength(path, 30); err == nil {
		t.Fatal("expected error for empty file")
	}
}

func TestCountReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reads.fastq")
	writeFastq(t, path, 10, 10, 10, 10, 10)
	n, err := CountReads(path)
	if err != nil {
		t.Fatalf("CountReads: %v", err)
	}
	if n != 5 {
		t.Fatalf("got %d reads, want 5", n)
	}
}

func TestCountReadsTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.fastq")
	if err := os.WriteFile(path, []byte("@r1\nACGT\n+\nIIII\n@r2\nAC\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := CountReads(path); err == nil {
		t.Fatal("expected truncated record error")
	}
}

func TestParseFasta(t *testing.T) {
	input := ">contig_1 len=8\nacgt\nACGT\n\n>contig_2\nTTTT\n"
	records, err := ParseFasta(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseFasta: %v", err)
	}
	want := []Record{
		{ID: "contig_1", Description: "len=8", Seq: []byte("ACGTACGT")},
		{ID: "contig_2", Seq: []byte("TTTT")},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
	if TotalLength(records) != 12 {
		t.Fatalf("TotalLength = %d", TotalLength(records))
	}
	if _, ok := Index(records)["contig_2"]; !ok {
		t.Fatal("Index missing contig_2")
	}
}

func TestParseFastaRejectsHeaderlessData(t *testing.T) {
	if _, err := ParseFasta(strings.NewReader("ACGT\n>x\nA\n")); err == nil {
		t.Fatal("expected error")
	}
}

func TestFastaWriterWrapsOrSingleLine(t *testing.T) {
	var wrapped bytes.Buffer
	if err := NewFastaWriter(&wrapped, 4).Write("SRR1 Escherichia coli", []byte("ACGTACGTAC")); err != nil {
		t.Fatal(err)
	}
	if wrapped.String() != ">SRR1 Escherichia coli\nACGT\nACGT\nAC\n" {
		t.Fatalf("unexpected wrapped output %q", wrapped.String())
	}

	var single bytes.Buffer
	if err := NewFastaWriter(&single, 0).Write("SRR1\nbad", []byte("ACGTACGTAC")); err != nil {
		t.Fatal(err)
	}
	if single.String() != ">SRR1 bad\nACGTACGTAC\n" {
		t.Fatalf("unexpected single-line output %q", single.String())
	}
}

func TestRevComp(t *testing.T) {
	cases := map[string]string{
		"ACGT":   "ACGT",
		"AACCGT": "ACGGTT",
		"acgN":   "Ncgt",
		"AX":     "NT",
		"":       "",
	}
	for in, want := range cases {
		if got := string(RevComp([]byte(in))); got != want {
			t.Errorf("RevComp(%q) = %q, want %q", in, got, want)
		}
	}
}
