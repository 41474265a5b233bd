package workflow

import (
	"fmt"
	"os"
	"path/filepath"

	"ribodb/internal/checkpoint"
	"ribodb/internal/config"
	"ribodb/internal/fingerprint"
	"ribodb/internal/logging"
	"ribodb/internal/pipeline"
	"ribodb/internal/runenv"
)

// dependentMarker maps each tracked parameter to the earliest stage whose
// output depends on it.
var dependentMarker = map[string]checkpoint.Marker{
	config.KeyGenomesDir:         checkpoint.ReferenceSelected,
	config.KeyMaxDistance:        checkpoint.ReferenceSelected,
	config.KeyCheckRDNA:          checkpoint.ReferenceSelected,
	config.KeyDownsamplingAmount: checkpoint.ReferenceSelected,
	config.KeyKraken2DB:          checkpoint.TaxonomyAssigned,
	config.KeySickleQuality:      checkpoint.Trimmed,
	config.KeyApproxLength:       checkpoint.Downsampled,
	config.KeyMinCoverage:        checkpoint.Downsampled,
	config.KeyMaxCoverage:        checkpoint.Downsampled,
	config.KeySampleSeed:         checkpoint.Downsampled,
	config.KeySubassembler:       checkpoint.Assembled,
}

// invalidationPoint returns the earliest marker affected by the changed keys.
func invalidationPoint(changed []string) (checkpoint.Marker, bool) {
	markers := make([]checkpoint.Marker, 0, len(changed))
	for _, key := range changed {
		if m, ok := dependentMarker[key]; ok {
			markers = append(markers, m)
		}
	}
	return checkpoint.Earliest(markers...)
}

// applyFingerprint compares the tracked parameters with the previous run,
// invalidates the dependent markers on every item under the output root and
// only then stores the new record, so an interrupted invalidation is retried.
func (m *Manager) applyFingerprint(env *runenv.Env, items []*pipeline.Item) error {
	current := m.cfg.Fingerprint()
	tracker := fingerprint.NewTracker(env.ParametersPath(), m.logger)
	changed := tracker.Compare(current, config.TrackedKeys)
	if marker, ok := invalidationPoint(changed); ok {
		if err := m.invalidate(env, items, changed, marker); err != nil {
			return err
		}
	}
	if err := tracker.Commit(current, config.TrackedKeys); err != nil {
		return fmt.Errorf("store parameters: %w", err)
	}
	return nil
}

func (m *Manager) invalidate(env *runenv.Env, items []*pipeline.Item, changed []string, marker checkpoint.Marker) error {
	m.logger.Info("parameters changed; invalidating checkpoints",
		logging.Strings("keys", changed),
		logging.String("from", string(marker)),
	)
	ids, err := knownItems(env.OutputDir)
	if err != nil {
		return err
	}
	for _, item := range items {
		ids[item.ID] = struct{}{}
	}
	invalid := checkpoint.From(marker)
	for id := range ids {
		if err := env.Checkpoints.Invalidate(id, invalid...); err != nil {
			return fmt.Errorf("invalidate %s: %w", id, err)
		}
	}
	return nil
}

// knownItems lists item directories that carry a checkpoint file.
func knownItems(root string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list output directory: %w", err)
	}
	out := make(map[string]struct{})
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, entry.Name(), checkpoint.StatusFile)); err == nil {
			out[entry.Name()] = struct{}{}
		}
	}
	return out, nil
}
