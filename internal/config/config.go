package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains input and output locations.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	GenomesDir string `toml:"genomes_dir"`
	SRAFind    string `toml:"sra_find"`
	SRAList    string `toml:"sra_list"`
}

// Selection decides which accessions a run processes.
type Selection struct {
	OrganismName string   `toml:"organism_name"`
	SRAs         []string `toml:"sras"`
	NStrains     int      `toml:"nstrains"`
	GetAll       bool     `toml:"get_all"`
	// ExampleReads holds one (single-end) or two (paired) local read files.
	ExampleReads []string `toml:"example_reads"`
}

// Reference contains reference selection thresholds.
type Reference struct {
	MaxDistance        float64 `toml:"max_distance"`
	CheckRDNACopies    bool    `toml:"check_rdna_copies"`
	DownsamplingAmount int     `toml:"downsampling_amount"`
	// ApproxLength overrides the reference genome length when positive.
	ApproxLength int `toml:"approx_length"`
}

// Taxonomy contains classifier settings.
type Taxonomy struct {
	Kraken2DB string `toml:"kraken2_db"`
}

// Reads contains the read length gate.
type Reads struct {
	MinLength  int `toml:"min_length"`
	MaxLength  int `toml:"max_length"`
	SampleSize int `toml:"sample_size"`
}

// Coverage contains coverage thresholds and the sampling seed.
type Coverage struct {
	Min  float64 `toml:"min"`
	Max  float64 `toml:"max"`
	Seed int     `toml:"seed"`
}

// Assembly contains subassembler and pool settings.
type Assembly struct {
	Subassembler string `toml:"subassembler"`
	Cores        int    `toml:"cores"`
	Threads      int    `toml:"threads"`
	Memory       int    `toml:"memory"`
	Concurrency  int    `toml:"concurrency"`
}

// Output controls how extracted sequences are written.
type Output struct {
	SingleLine bool `toml:"single_line"`
	LineWidth  int  `toml:"line_width"`
}

// Alignment toggles the optional alignment and tree step.
type Alignment struct {
	Enabled bool `toml:"enabled"`
}

// Tools names the external binaries. Empty values fall back to defaults.
type Tools struct {
	FasterqDump   string `toml:"fasterq_dump"`
	Plentyofbugs  string `toml:"plentyofbugs"`
	Kraken2       string `toml:"kraken2"`
	Sickle        string `toml:"sickle"`
	Seqtk         string `toml:"seqtk"`
	Ribo          string `toml:"ribo"`
	Barrnap       string `toml:"barrnap"`
	Mafft         string `toml:"mafft"`
	IQTree        string `toml:"iqtree"`
	SickleQuality string `toml:"sickle_quality"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ribodb.
//
// Configuration sections by subsystem:
//   - Paths: output root, reference genomes and accession sources
//   - Selection: which accessions to process
//   - Reference, Taxonomy, Reads, Coverage: per-stage thresholds
//   - Assembly: subassembler resources and pool width
//   - Output, Alignment: aggregation output
//   - Tools: external binary names
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Selection Selection `toml:"selection"`
	Reference Reference `toml:"reference"`
	Taxonomy  Taxonomy  `toml:"taxonomy"`
	Reads     Reads     `toml:"reads"`
	Coverage  Coverage  `toml:"coverage"`
	Assembly  Assembly  `toml:"assembly"`
	Output    Output    `toml:"output"`
	Alignment Alignment `toml:"alignment"`
	Tools     Tools     `toml:"tools"`
	Logging   Logging   `toml:"logging"`
}

// Fingerprint keys. Their order is the order they are written.
const (
	KeyGenomesDir         = "genomes_dir"
	KeyMaxDistance        = "maxdist"
	KeyCheckRDNA          = "check_rdna"
	KeyDownsamplingAmount = "downsampling_amount"
	KeyKraken2DB          = "kraken2_db"
	KeySickleQuality      = "sickle_quality"
	KeyApproxLength       = "approx_length"
	KeyMinCoverage        = "mincov"
	KeyMaxCoverage        = "maxcov"
	KeySubassembler       = "subassembler"
	KeySampleSeed         = "sample_seed"
)

// TrackedKeys lists the parameters whose change invalidates checkpoints.
var TrackedKeys = []string{
	KeyGenomesDir,
	KeyMaxDistance,
	KeyCheckRDNA,
	KeyDownsamplingAmount,
	KeyKraken2DB,
	KeySickleQuality,
	KeyApproxLength,
	KeyMinCoverage,
	KeyMaxCoverage,
	KeySubassembler,
	KeySampleSeed,
}

// Fingerprint returns the current value of every tracked parameter.
func (c *Config) Fingerprint() map[string]string {
	return map[string]string{
		KeyGenomesDir:         c.Paths.GenomesDir,
		KeyMaxDistance:        strconv.FormatFloat(c.Reference.MaxDistance, 'g', -1, 64),
		KeyCheckRDNA:          strconv.FormatBool(c.Reference.CheckRDNACopies),
		KeyDownsamplingAmount: strconv.Itoa(c.Reference.DownsamplingAmount),
		KeyKraken2DB:          c.Taxonomy.Kraken2DB,
		KeySickleQuality:      c.Tools.SickleQuality,
		KeyApproxLength:       strconv.Itoa(c.Reference.ApproxLength),
		KeyMinCoverage:        strconv.FormatFloat(c.Coverage.Min, 'g', -1, 64),
		KeyMaxCoverage:        strconv.FormatFloat(c.Coverage.Max, 'g', -1, 64),
		KeySubassembler:       c.Assembly.Subassembler,
		KeySampleSeed:         strconv.Itoa(c.Coverage.Seed),
	}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ribodb/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Finalize normalizes and validates the configuration. Callers that mutate a
// loaded config (for example from CLI flags) should call it again.
func (c *Config) Finalize() error {
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ribodb.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output root.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.OutputDir, err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
