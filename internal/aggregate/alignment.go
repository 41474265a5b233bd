package aggregate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"ribodb/internal/fileutil"
	"ribodb/internal/logging"
	"ribodb/internal/services"
	"ribodb/internal/services/runner"
	"ribodb/internal/services/tools"
)

// AlignmentItem names alignment entries in the ledger.
const AlignmentItem = "alignment"

// Align normalizes the extracted sequences, aligns them with mafft and builds
// a tree with iqtree under the alignment directory. It returns the tree path.
func (a *Aggregator) Align(ctx context.Context) (string, error) {
	dir := a.env.AlignmentDir()
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("remove stale alignment: %w", err)
	}
	if !fileutil.NonEmpty(a.env.SequencesPath()) {
		return "", services.Wrap(services.ErrValidation, AlignmentItem, "align", "no sequences to align", nil)
	}
	ctx = services.WithStage(ctx, AlignmentItem)
	t := a.env.Config.Tools
	normalized := filepath.Join(dir, "sequences.fasta")
	msa := filepath.Join(dir, "MSA.fasta")
	steps := []struct {
		inv    runner.Invocation
		output string
	}{
		{tools.SeqtkSeq(t.Seqtk, a.env.SequencesPath(), normalized), normalized},
		{tools.Mafft(t.Mafft, normalized, msa), msa},
		{tools.IQTree(t.IQTree, msa, filepath.Join(dir, "iqtree.log")), ""},
	}
	for _, step := range steps {
		if err := a.env.Runner.Run(ctx, step.inv); err != nil {
			return "", err
		}
		if step.output != "" && !fileutil.NonEmpty(step.output) {
			return "", services.Wrap(services.ErrNoResult, AlignmentItem, filepath.Base(step.output), "empty output", nil)
		}
	}
	tree := msa + ".treefile"
	a.logger.Info("alignment complete", logging.String("tree", tree))
	return tree, nil
}
