// Package seqio reads and writes the sequence files that flow between
// pipeline stages: gzip-aware FASTQ scanning for read statistics, FASTA
// loading for region extraction, and wrapped or single-line FASTA output.
package seqio
