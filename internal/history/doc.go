// Package history keeps a SQLite record of every pipeline run and the
// ledger entries it produced, so outcomes survive the per-run ledger
// truncation.
package history
