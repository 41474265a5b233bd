// Package services defines shared utilities consumed by the pipeline stages
// and the external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp accession IDs, stage names, and run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent ledger statuses (FAIL for rejections, ERROR for tool
//     failures that a later run may retry).
//
// Use these helpers when wiring new stage logic so failure classification
// stays uniform across the pipeline.
package services
