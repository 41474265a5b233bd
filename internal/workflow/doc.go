// Package workflow drives one pipeline run end to end.
//
// The Manager locks the output root, expands the candidate items, compares
// the tracked parameters against the previous run and invalidates the
// dependent checkpoints, then walks every item through the sequential
// stages. Ready assemblies are handed to the bounded scheduler; once every
// job has a result the manager reconciles each outcome into the ledger,
// aggregates the 16S regions, optionally aligns them, and stores the run in
// the history database.
//
// Per-item failures never stop the run. Only the global outcomes (no
// candidate items, no reference genomes, no extracted sequence) make the
// run fail.
package workflow
