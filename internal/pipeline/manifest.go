package pipeline

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"ribodb/internal/fileutil"
)

// manifest records which reads feed the assembler.
type manifest struct {
	Forward  string
	Reverse  string
	Coverage float64
}

func writeManifest(path string, m manifest) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "forward\t%s\n", m.Forward)
	fmt.Fprintf(&buf, "reverse\t%s\n", m.Reverse)
	fmt.Fprintf(&buf, "coverage\t%s\n", strconv.FormatFloat(m.Coverage, 'f', -1, 64))
	return fileutil.WriteAtomic(path, buf.Bytes(), 0o644)
}

func readManifest(path string) (manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, err
	}
	var m manifest
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "\t")
		if !ok {
			continue
		}
		switch key {
		case "forward":
			m.Forward = value
		case "reverse":
			m.Reverse = value
		case "coverage":
			if m.Coverage, err = strconv.ParseFloat(value, 64); err != nil {
				return manifest{}, fmt.Errorf("reads manifest coverage: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return manifest{}, err
	}
	if !fileutil.NonEmpty(m.Forward) {
		return manifest{}, fmt.Errorf("reads manifest: forward reads %q missing", m.Forward)
	}
	if m.Reverse != "" && !fileutil.NonEmpty(m.Reverse) {
		return manifest{}, fmt.Errorf("reads manifest: reverse reads %q missing", m.Reverse)
	}
	return m, nil
}
