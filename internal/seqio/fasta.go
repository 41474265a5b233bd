package seqio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Record is one FASTA entry. ID is the header up to the first whitespace.
type Record struct {
	ID          string
	Description string
	Seq         []byte
}

// ReadFasta loads every record from path.
func ReadFasta(path string) ([]Record, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ParseFasta(rc)
}

// ParseFasta reads FASTA records from r. Sequence lines are concatenated and
// upper-cased; data before the first header is an error.
func ParseFasta(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64<<20)

	var (
		out []Record
		cur *Record
	)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			header := strings.TrimSpace(string(line[1:]))
			id, desc, _ := strings.Cut(header, " ")
			out = append(out, Record{ID: id, Description: strings.TrimSpace(desc)})
			cur = &out[len(out)-1]
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("line %d: sequence data before first header", lineNo)
		}
		cur.Seq = append(cur.Seq, bytes.ToUpper(line)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Index maps record IDs to records. Later duplicates win.
func Index(records []Record) map[string]Record {
	idx := make(map[string]Record, len(records))
	for _, r := range records {
		idx[r.ID] = r
	}
	return idx
}

// TotalLength returns the number of bases across records.
func TotalLength(records []Record) int64 {
	var n int64
	for _, r := range records {
		n += int64(len(r.Seq))
	}
	return n
}

// FastaWriter writes records, wrapping sequence lines at Width. A Width of
// zero or less writes each sequence on a single line.
type FastaWriter struct {
	w     io.Writer
	Width int
}

func NewFastaWriter(w io.Writer, width int) *FastaWriter {
	return &FastaWriter{w: w, Width: width}
}

// Write emits one record with the given header (without '>').
func (fw *FastaWriter) Write(header string, seq []byte) error {
	header = strings.NewReplacer("\n", " ", "\r", " ").Replace(header)
	if _, err := fmt.Fprintf(fw.w, ">%s\n", header); err != nil {
		return err
	}
	if fw.Width <= 0 || len(seq) <= fw.Width {
		_, err := fmt.Fprintf(fw.w, "%s\n", seq)
		return err
	}
	for start := 0; start < len(seq); start += fw.Width {
		end := min(start+fw.Width, len(seq))
		if _, err := fmt.Fprintf(fw.w, "%s\n", seq[start:end]); err != nil {
			return err
		}
	}
	return nil
}
