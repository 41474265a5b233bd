// Package fingerprint persists the parameters that shaped the previous run and
// reports which of them differ in the current one.
package fingerprint

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"ribodb/internal/fileutil"
	"ribodb/internal/logging"
)

// FileName is the fingerprint record under the output root.
const FileName = "parameters"

// Tracker compares the current parameters with the record from the last run.
type Tracker struct {
	path   string
	logger *slog.Logger
}

// NewTracker returns a tracker for the record at path.
func NewTracker(path string, logger *slog.Logger) *Tracker {
	return &Tracker{path: path, logger: logging.NewComponentLogger(logger, "fingerprint")}
}

// Path returns the record location.
func (t *Tracker) Path() string {
	return t.path
}

// ChangedSinceLast returns the keys (in keys order) whose value in current
// differs from the stored record, then overwrites the record with current.
// An absent or unreadable record reports every key as changed.
func (t *Tracker) ChangedSinceLast(current map[string]string, keys []string) ([]string, error) {
	changed := t.Compare(current, keys)
	if err := t.Commit(current, keys); err != nil {
		return changed, err
	}
	return changed, nil
}

// Compare reports the changed keys without touching the record. Callers that
// act on the result before persisting it pair it with Commit.
func (t *Tracker) Compare(current map[string]string, keys []string) []string {
	previous, err := t.load()
	if err != nil {
		t.logger.Warn("parameter record unusable; treating every parameter as changed",
			logging.String("path", t.path),
			logging.Error(err),
		)
		previous = nil
	}

	var changed []string
	for _, key := range keys {
		if previous == nil {
			changed = append(changed, key)
			continue
		}
		old, ok := previous[key]
		if !ok || old != current[key] {
			changed = append(changed, key)
		}
	}
	if len(changed) > 0 && previous != nil {
		t.logger.Info("parameters changed since last run", logging.Strings("keys", changed))
	}
	return changed
}

// Commit overwrites the record with the tracked keys of current.
func (t *Tracker) Commit(current map[string]string, keys []string) error {
	if err := fileutil.WriteAtomic(t.path, Format(current, keys), 0o644); err != nil {
		return fmt.Errorf("write parameter record: %w", err)
	}
	return nil
}

var errMissing = errors.New("no parameter record")

func (t *Tracker) load() (map[string]string, error) {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errMissing
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes key:value lines. Any non-blank line without a separator or
// with an empty key makes the whole record malformed.
func Parse(data []byte) (map[string]string, error) {
	out := map[string]string{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("line %d: malformed entry %q", lineNo, line)
		}
		out[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Format encodes the tracked keys of values, one key:value per line.
func Format(values map[string]string, keys []string) []byte {
	var buf bytes.Buffer
	for _, key := range keys {
		buf.WriteString(key)
		buf.WriteByte(':')
		buf.WriteString(values[key])
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
