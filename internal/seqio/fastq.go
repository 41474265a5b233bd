package seqio

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/stat"
)

// ErrNoReads is returned when a FASTQ file contains no complete record.
var ErrNoReads = errors.New("no reads")

// FastqScanner iterates four-line FASTQ records.
type FastqScanner struct {
	scanner *bufio.Scanner
	seq     []byte
	err     error
	line    int
}

// NewFastqScanner wraps r. Long reads up to 1 MiB per line are accepted.
func NewFastqScanner(r io.Reader) *FastqScanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 1<<20)
	return &FastqScanner{scanner: s}
}

// Next advances to the next record. It returns false at EOF or on a
// malformed record; check Err afterwards.
func (f *FastqScanner) Next() bool {
	var lines [4][]byte
	for i := range lines {
		if !f.scanner.Scan() {
			if err := f.scanner.Err(); err != nil {
				f.err = err
			} else if i > 0 {
				f.err = fmt.Errorf("truncated record at line %d", f.line)
			}
			return false
		}
		f.line++
		lines[i] = f.scanner.Bytes()
		if i == 1 {
			f.seq = append(f.seq[:0], lines[i]...)
		}
	}
	if len(lines[0]) == 0 || lines[0][0] != '@' {
		f.err = fmt.Errorf("line %d: expected '@' header", f.line-3)
		return false
	}
	if len(lines[2]) == 0 || lines[2][0] != '+' {
		f.err = fmt.Errorf("line %d: expected '+' separator", f.line-1)
		return false
	}
	return true
}

// Seq returns the current read's bases. The slice is reused by Next.
func (f *FastqScanner) Seq() []byte {
	return f.seq
}

func (f *FastqScanner) Err() error {
	return f.err
}

// AverageReadLength returns the mean length of the first n reads of path.
// Files with fewer than n reads are averaged over the reads present.
func AverageReadLength(path string, n int) (float64, error) {
	rc, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	lengths := make([]float64, 0, n)
	scanner := NewFastqScanner(rc)
	for len(lengths) < n && scanner.Next() {
		lengths = append(lengths, float64(len(scanner.Seq())))
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan %s: %w", path, err)
	}
	if len(lengths) == 0 {
		return 0, fmt.Errorf("%s: %w", path, ErrNoReads)
	}
	return stat.Mean(lengths, nil), nil
}

// CountReads returns the number of FASTQ records in path.
func CountReads(path string) (int64, error) {
	rc, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	var count int64
	scanner := NewFastqScanner(rc)
	for scanner.Next() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan %s: %w", path, err)
	}
	return count, nil
}
