package config

const (
	defaultOutputDir          = "./ribodb-output"
	defaultSRAFind            = "sraFind-All-biosample-with-SRA-hits.txt"
	defaultMaxDistance        = 0.1
	defaultDownsamplingAmount = 1000000
	defaultMinReadLength      = 65
	defaultMaxReadLength      = 300
	defaultReadSampleSize     = 30
	defaultMinCoverage        = 10
	defaultMaxCoverage        = 50
	defaultSampleSeed         = 100
	defaultSubassembler       = "spades"
	defaultCores              = 1
	defaultThreads            = 1
	defaultMemory             = 4
	defaultConcurrency        = 2
	defaultLineWidth          = 60
	defaultSickleQuality      = "sanger"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	kraken2DBEnv              = "KRAKEN2_DEFAULT_DB"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			SRAFind:   defaultSRAFind,
		},
		Reference: Reference{
			MaxDistance:        defaultMaxDistance,
			DownsamplingAmount: defaultDownsamplingAmount,
		},
		Reads: Reads{
			MinLength:  defaultMinReadLength,
			MaxLength:  defaultMaxReadLength,
			SampleSize: defaultReadSampleSize,
		},
		Coverage: Coverage{
			Min:  defaultMinCoverage,
			Max:  defaultMaxCoverage,
			Seed: defaultSampleSeed,
		},
		Assembly: Assembly{
			Subassembler: defaultSubassembler,
			Cores:        defaultCores,
			Threads:      defaultThreads,
			Memory:       defaultMemory,
			Concurrency:  defaultConcurrency,
		},
		Output: Output{
			LineWidth: defaultLineWidth,
		},
		Tools: defaultTools(),
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultTools() Tools {
	return Tools{
		FasterqDump:   "fasterq-dump",
		Plentyofbugs:  "plentyofbugs",
		Kraken2:       "kraken2",
		Sickle:        "sickle",
		Seqtk:         "seqtk",
		Ribo:          "ribo",
		Barrnap:       "barrnap",
		Mafft:         "mafft",
		IQTree:        "iqtree",
		SickleQuality: defaultSickleQuality,
	}
}
