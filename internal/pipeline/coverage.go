package pipeline

import "math"

// Coverage is total sequenced bases over genome length. Paired reads count
// the read length twice.
func Coverage(reads int64, readLength float64, paired bool, genomeLength int64) float64 {
	if genomeLength <= 0 {
		return 0
	}
	effective := readLength
	if paired {
		effective *= 2
	}
	return float64(reads) * effective / float64(genomeLength)
}

// SampleFraction is the fraction of reads to keep to bring coverage down to
// maxCoverage, rounded to three decimals.
func SampleFraction(maxCoverage, coverage float64) float64 {
	if coverage <= 0 {
		return 1
	}
	return math.Round(maxCoverage/coverage*1000) / 1000
}
