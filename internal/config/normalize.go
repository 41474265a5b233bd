package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSelection()
	c.normalizeTaxonomy()
	c.normalizeTools()
	c.normalizeLogging()
	if c.Assembly.Concurrency <= 0 {
		c.Assembly.Concurrency = 1
	}
	if c.Output.LineWidth <= 0 {
		c.Output.LineWidth = defaultLineWidth
	}
	c.Assembly.Subassembler = strings.ToLower(strings.TrimSpace(c.Assembly.Subassembler))
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.GenomesDir, err = expandPath(strings.TrimSpace(c.Paths.GenomesDir)); err != nil {
		return fmt.Errorf("paths.genomes_dir: %w", err)
	}
	if c.Paths.SRAFind, err = expandPath(strings.TrimSpace(c.Paths.SRAFind)); err != nil {
		return fmt.Errorf("paths.sra_find: %w", err)
	}
	if c.Paths.SRAList, err = expandPath(strings.TrimSpace(c.Paths.SRAList)); err != nil {
		return fmt.Errorf("paths.sra_list: %w", err)
	}
	for i, reads := range c.Selection.ExampleReads {
		if c.Selection.ExampleReads[i], err = expandPath(strings.TrimSpace(reads)); err != nil {
			return fmt.Errorf("selection.example_reads: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeSelection() {
	c.Selection.OrganismName = strings.TrimSpace(c.Selection.OrganismName)
	sras := c.Selection.SRAs[:0]
	for _, sra := range c.Selection.SRAs {
		if trimmed := strings.TrimSpace(sra); trimmed != "" {
			sras = append(sras, trimmed)
		}
	}
	c.Selection.SRAs = sras
}

func (c *Config) normalizeTaxonomy() {
	c.Taxonomy.Kraken2DB = strings.TrimSpace(c.Taxonomy.Kraken2DB)
	if c.Taxonomy.Kraken2DB == "" {
		if value, ok := os.LookupEnv(kraken2DBEnv); ok {
			c.Taxonomy.Kraken2DB = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeTools() {
	defaults := defaultTools()
	fill := func(value *string, fallback string) {
		*value = strings.TrimSpace(*value)
		if *value == "" {
			*value = fallback
		}
	}
	fill(&c.Tools.FasterqDump, defaults.FasterqDump)
	fill(&c.Tools.Plentyofbugs, defaults.Plentyofbugs)
	fill(&c.Tools.Kraken2, defaults.Kraken2)
	fill(&c.Tools.Sickle, defaults.Sickle)
	fill(&c.Tools.Seqtk, defaults.Seqtk)
	fill(&c.Tools.Ribo, defaults.Ribo)
	fill(&c.Tools.Barrnap, defaults.Barrnap)
	fill(&c.Tools.Mafft, defaults.Mafft)
	fill(&c.Tools.IQTree, defaults.IQTree)
	fill(&c.Tools.SickleQuality, defaults.SickleQuality)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
