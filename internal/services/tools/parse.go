package tools

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrEmptyOutput is returned when a tool output file has no usable line.
var ErrEmptyOutput = errors.New("empty tool output")

// BestReference is the first line of plentyofbugs' best_reference file.
type BestReference struct {
	Path     string
	Distance float64
}

// ParseBestReference reads "path<TAB>distance" and returns the first entry.
func ParseBestReference(r io.Reader) (BestReference, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return BestReference{}, fmt.Errorf("best_reference: expected two columns in %q", line)
		}
		dist, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return BestReference{}, fmt.Errorf("best_reference: distance: %w", err)
		}
		return BestReference{Path: strings.TrimSpace(fields[0]), Distance: dist}, nil
	}
	if err := scanner.Err(); err != nil {
		return BestReference{}, err
	}
	return BestReference{}, ErrEmptyOutput
}

// ReadBestReference parses the best_reference file at path.
func ReadBestReference(path string) (BestReference, error) {
	f, err := os.Open(path)
	if err != nil {
		return BestReference{}, err
	}
	defer f.Close()
	return ParseBestReference(f)
}

// Feature is one annotated region. Start and End are 0-based half-open.
type Feature struct {
	SeqID  string
	Start  int
	End    int
	Strand byte
	Name   string
}

// Reverse reports whether the feature lies on the minus strand.
func (f Feature) Reverse() bool {
	return f.Strand == '-'
}

// ParseGFF reads barrnap GFF3 output. Comment lines are skipped and the
// 1-based inclusive coordinates are converted to 0-based half-open.
func ParseGFF(r io.Reader) ([]Feature, error) {
	var out []Feature
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 9 {
			return nil, fmt.Errorf("gff line %d: expected 9 columns, got %d", lineNo, len(fields))
		}
		start, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("gff line %d: start: %w", lineNo, err)
		}
		end, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("gff line %d: end: %w", lineNo, err)
		}
		if start < 1 || end < start {
			return nil, fmt.Errorf("gff line %d: invalid range %d..%d", lineNo, start, end)
		}
		strand := byte('+')
		if fields[6] == "-" {
			strand = '-'
		}
		out = append(out, Feature{
			SeqID:  fields[0],
			Start:  start - 1,
			End:    end,
			Strand: strand,
			Name:   attribute(fields[8], "Name"),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadGFF parses the GFF file at path.
func ReadGFF(path string) ([]Feature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseGFF(f)
}

// Filter16S keeps the small-subunit features (Name=16S_rRNA).
func Filter16S(features []Feature) []Feature {
	var out []Feature
	for _, f := range features {
		if strings.HasPrefix(f.Name, "16S") {
			out = append(out, f)
		}
	}
	return out
}

func attribute(attrs, key string) string {
	for _, kv := range strings.Split(attrs, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if ok && k == key {
			return v
		}
	}
	return ""
}
