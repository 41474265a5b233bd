// Package taxonomy reduces a kraken2 report to one call per rank and derives
// the labels used to tag extracted sequences.
package taxonomy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Rank is a kraken2 rank code.
type Rank string

const (
	Domain  Rank = "D"
	Phylum  Rank = "P"
	Class   Rank = "C"
	Order   Rank = "O"
	Family  Rank = "F"
	Genus   Rank = "G"
	Species Rank = "S"
)

// Ranks is the fixed reporting order, domain first.
var Ranks = []Rank{Domain, Phylum, Class, Order, Family, Genus, Species}

// Call is the best classification at one rank.
type Call struct {
	Label string
	Score float64
	TaxID string
}

// Taxonomy holds one call per rank. Ranks without a call hold the zero Call.
type Taxonomy struct {
	Calls map[Rank]Call
}

// ErrEmptyReport is returned when a report has no usable rank lines.
var ErrEmptyReport = errors.New("empty kraken2 report")

// Get returns the call at rank r.
func (t Taxonomy) Get(r Rank) Call {
	return t.Calls[r]
}

// ParseReport keeps, for each rank in Ranks, the line with the highest
// percentage. Ties keep the first line seen. Sub-rank codes such as S1 are
// ignored.
func ParseReport(r io.Reader) (Taxonomy, error) {
	tax := Taxonomy{Calls: make(map[Rank]Call, len(Ranks))}
	seen := map[Rank]bool{}
	wanted := map[Rank]bool{}
	for _, rank := range Ranks {
		wanted[rank] = true
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	usable := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}
		fields := strings.Split(raw, "\t")
		if len(fields) < 6 {
			return Taxonomy{}, fmt.Errorf("line %d: expected 6 columns, got %d", lineNo, len(fields))
		}
		pct, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return Taxonomy{}, fmt.Errorf("line %d: percentage: %w", lineNo, err)
		}
		usable++
		rank := Rank(strings.TrimSpace(fields[3]))
		if !wanted[rank] {
			continue
		}
		if seen[rank] && pct <= tax.Calls[rank].Score {
			continue
		}
		seen[rank] = true
		tax.Calls[rank] = Call{
			Label: strings.TrimSpace(strings.Join(fields[5:], "\t")),
			Score: pct,
			TaxID: strings.TrimSpace(fields[4]),
		}
	}
	if err := scanner.Err(); err != nil {
		return Taxonomy{}, err
	}
	if usable == 0 {
		return Taxonomy{}, ErrEmptyReport
	}
	for _, rank := range Ranks {
		if _, ok := tax.Calls[rank]; !ok {
			tax.Calls[rank] = Call{}
		}
	}
	return tax, nil
}

// Unclassified is the label used when no rank has a call.
const Unclassified = "unclassified"

// FallbackLabel returns the species label, or walks up genus, family, order,
// class and phylum until a label is found. A genus fallback gets "sp."
// appended directly.
func (t Taxonomy) FallbackLabel() string {
	if label := t.Get(Species).Label; label != "" {
		return label
	}
	if label := t.Get(Genus).Label; label != "" {
		return label + "sp."
	}
	for _, rank := range []Rank{Family, Order, Class, Phylum} {
		if label := t.Get(rank).Label; label != "" {
			return label
		}
	}
	return Unclassified
}

// Labels joins the label of every rank in order with sep.
func (t Taxonomy) Labels(sep string) string {
	return t.join(sep, func(c Call) string { return c.Label })
}

// Scores joins the score of every rank in order with sep.
func (t Taxonomy) Scores(sep string) string {
	return t.join(sep, func(c Call) string { return strconv.FormatFloat(c.Score, 'f', -1, 64) })
}

// TaxIDs joins the taxon id of every rank in order with sep. Missing ids
// render as 0.
func (t Taxonomy) TaxIDs(sep string) string {
	return t.join(sep, func(c Call) string {
		if c.TaxID == "" {
			return "0"
		}
		return c.TaxID
	})
}

func (t Taxonomy) join(sep string, field func(Call) string) string {
	parts := make([]string, len(Ranks))
	for i, rank := range Ranks {
		parts[i] = field(t.Get(rank))
	}
	return strings.Join(parts, sep)
}
