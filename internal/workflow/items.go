package workflow

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"ribodb/internal/logging"
	"ribodb/internal/pipeline"
	"ribodb/internal/runenv"
	"ribodb/internal/services"
)

// sraFind column indexes (0-based, tab-separated).
const (
	sraFindPlatformColumn = 8
	sraFindOrganismColumn = 11
	sraFindRunsColumn     = 17
	sraFindShuffleSeed    = 8
)

// expandItems resolves the candidate items. Example reads win over explicit
// accessions, which win over an accession list, which wins over sraFind.
func (m *Manager) expandItems() ([]*pipeline.Item, error) {
	sel := m.cfg.Selection
	if len(sel.ExampleReads) > 0 {
		reverse := ""
		if len(sel.ExampleReads) > 1 {
			reverse = sel.ExampleReads[1]
		}
		return []*pipeline.Item{pipeline.NewExample(runenv.ExampleItemID, sel.ExampleReads[0], reverse)}, nil
	}

	var accessions []string
	switch {
	case len(sel.SRAs) > 0:
		accessions = sel.SRAs
	case m.cfg.Paths.SRAList != "":
		list, err := readAccessionList(m.cfg.Paths.SRAList)
		if err != nil {
			return nil, err
		}
		accessions = list
	default:
		if strings.TrimSpace(sel.OrganismName) == "" {
			return nil, services.Wrap(services.ErrConfiguration, StageSetup, "select accessions",
				"organism_name is required when no accessions are given", nil)
		}
		f, err := os.Open(m.cfg.Paths.SRAFind)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, StageSetup, "open sraFind table", m.cfg.Paths.SRAFind, err)
		}
		defer f.Close()
		accessions, err = FilterSRAFind(f, sel.OrganismName, sel.NStrains, sel.GetAll)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{}, len(accessions))
	items := make([]*pipeline.Item, 0, len(accessions))
	for _, acc := range accessions {
		acc = strings.TrimSpace(acc)
		if acc == "" {
			continue
		}
		if _, dup := seen[acc]; dup {
			continue
		}
		seen[acc] = struct{}{}
		items = append(items, pipeline.NewAccession(acc))
	}
	m.logger.Info("candidate items resolved", logging.Int("count", len(items)))
	return items, nil
}

// readAccessionList reads one accession per line. Blank lines and lines
// starting with # are ignored.
func readAccessionList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, StageSetup, "open accession list", path, err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read accession list: %w", err)
	}
	return out, nil
}

// FilterSRAFind selects Illumina runs of organism from a sraFind table.
// Matching rows are shuffled with a fixed seed and truncated to nstrains
// (0 keeps all). Each row contributes its first run, or every run when
// getAll is set.
func FilterSRAFind(r io.Reader, organism string, nstrains int, getAll bool) ([]string, error) {
	unquote := strings.NewReplacer(`"`, "", "'", "")
	var rows []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		fields := strings.Split(strings.TrimSpace(scanner.Text()), "\t")
		if len(fields) <= sraFindRunsColumn {
			continue
		}
		for i := range fields {
			fields[i] = unquote.Replace(fields[i])
		}
		if !strings.HasPrefix(fields[sraFindOrganismColumn], organism) {
			continue
		}
		if !strings.HasPrefix(fields[sraFindPlatformColumn], "ILLUMINA") {
			continue
		}
		rows = append(rows, fields[sraFindRunsColumn])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sraFind table: %w", err)
	}

	rng := rand.New(rand.NewSource(sraFindShuffleSeed))
	rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	if nstrains > 0 && nstrains < len(rows) {
		rows = rows[:nstrains]
	}

	var out []string
	for _, row := range rows {
		runs := strings.Split(row, ",")
		if !getAll {
			runs = runs[:1]
		}
		for _, run := range runs {
			if run = strings.TrimSpace(run); run != "" {
				out = append(out, run)
			}
		}
	}
	return out, nil
}
