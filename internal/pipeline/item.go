package pipeline

import (
	"ribodb/internal/services/tools"
	"ribodb/internal/taxonomy"
)

// Item is one accession moving through the pipeline.
type Item struct {
	ID string
	// Example items bring their own reads and skip the download stage.
	Example bool
	Forward string
	Reverse string

	ReadLength   float64
	Reference    tools.BestReference
	GenomeLength int64
	Taxonomy     taxonomy.Taxonomy

	TrimmedForward string
	TrimmedReverse string

	Coverage        float64
	AssemblyForward string
	AssemblyReverse string
}

// NewAccession returns an item whose reads are downloaded.
func NewAccession(id string) *Item {
	return &Item{ID: id}
}

// NewExample returns an item over local reads. reverse may be empty.
func NewExample(id, forward, reverse string) *Item {
	return &Item{ID: id, Example: true, Forward: forward, Reverse: reverse}
}

// Paired reports whether the item has reverse reads.
func (it *Item) Paired() bool {
	return it.Reverse != ""
}
