package config

import (
	"errors"
	"fmt"
)

var validSubassemblers = map[string]struct{}{
	"spades": {},
	"skesa":  {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSelection(); err != nil {
		return err
	}
	if err := c.validateReads(); err != nil {
		return err
	}
	if err := c.validateCoverage(); err != nil {
		return err
	}
	if err := c.validateAssembly(); err != nil {
		return err
	}
	if c.Reference.MaxDistance < 0 || c.Reference.MaxDistance > 1 {
		return errors.New("reference.max_distance must be between 0 and 1")
	}
	if c.Reference.ApproxLength < 0 {
		return errors.New("reference.approx_length must be non-negative")
	}
	return nil
}

func (c *Config) validateSelection() error {
	switch n := len(c.Selection.ExampleReads); {
	case n > 2:
		return fmt.Errorf("selection.example_reads accepts at most two files, got %d", n)
	case n > 0:
		return nil
	}
	if len(c.Selection.SRAs) > 0 || c.Paths.SRAList != "" {
		return nil
	}
	if c.Selection.NStrains < 0 {
		return errors.New("selection.nstrains must be non-negative")
	}
	return nil
}

func (c *Config) validateReads() error {
	if c.Reads.MinLength <= 0 || c.Reads.MaxLength <= 0 {
		return errors.New("reads.min_length and reads.max_length must be positive")
	}
	if c.Reads.MinLength > c.Reads.MaxLength {
		return fmt.Errorf("reads.min_length (%d) exceeds reads.max_length (%d)", c.Reads.MinLength, c.Reads.MaxLength)
	}
	if c.Reads.SampleSize <= 0 {
		return errors.New("reads.sample_size must be positive")
	}
	return nil
}

func (c *Config) validateCoverage() error {
	if c.Coverage.Min < 0 {
		return errors.New("coverage.min must be non-negative")
	}
	if c.Coverage.Max <= 0 {
		return errors.New("coverage.max must be positive")
	}
	if c.Coverage.Min > c.Coverage.Max {
		return fmt.Errorf("coverage.min (%g) exceeds coverage.max (%g)", c.Coverage.Min, c.Coverage.Max)
	}
	return nil
}

func (c *Config) validateAssembly() error {
	if _, ok := validSubassemblers[c.Assembly.Subassembler]; !ok {
		return fmt.Errorf("assembly.subassembler must be spades or skesa, got %q", c.Assembly.Subassembler)
	}
	if c.Assembly.Cores <= 0 || c.Assembly.Threads <= 0 {
		return errors.New("assembly.cores and assembly.threads must be positive")
	}
	if c.Assembly.Memory <= 0 {
		return errors.New("assembly.memory must be positive")
	}
	return nil
}
