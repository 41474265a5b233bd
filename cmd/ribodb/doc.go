// Command ribodb builds a 16S sequence database from sequencing read
// accessions.
//
// "ribodb run" drives every candidate accession through reference
// selection, taxonomic assignment, trimming, downsampling and assembly, then
// extracts the annotated 16S regions into ribo16s.fasta. Runs are
// resumable: completed stages are skipped unless a tracked parameter
// changed. "ribodb status", "ribodb history" and "ribodb check" inspect an
// output directory and the local toolchain.
package main
