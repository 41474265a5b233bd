// Package pipeline drives one item through the sequential stages that
// prepare it for assembly: download, read-length gate, reference selection,
// taxonomic classification, trimming, and coverage-based downsampling.
//
// Each stage is gated by a checkpoint marker and one artifact file. A stage
// whose marker is set and whose artifact is non-empty is skipped; otherwise
// the stage and every downstream marker are invalidated, the stage directory
// is cleared, and the stage runs again. Failures carry a services marker so
// the driver can classify them as FAIL or ERROR.
package pipeline
