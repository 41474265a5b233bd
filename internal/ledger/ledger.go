// Package ledger writes the run ledger: the append-only, tab-separated record
// of per-item and global outcomes for a single pipeline run.
//
// The ledger file is truncated when a run starts and every Record call appends
// exactly one line, so a crashed run still leaves every outcome recorded up to
// that point. Records are safe to write from concurrent assembly workers.
package ledger

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Status is the outcome class of a ledger entry.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
)

// Global is the item name used for run-level entries.
const Global = "global"

// Entry is one ledger line.
type Entry struct {
	Item   string
	Status Status
	Stage  string
	Note   string
}

// Line renders the entry in the on-disk format.
func (e Entry) Line() string {
	return strings.Join([]string{
		clean(e.Item),
		string(e.Status),
		clean(e.Stage),
		clean(e.Note),
	}, "\t") + "\n"
}

// Ledger appends entries to a run ledger file.
type Ledger struct {
	mu      sync.Mutex
	path    string
	entries []Entry
}

// Create truncates (or creates) the ledger file at path.
func Create(path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path required")
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return nil, fmt.Errorf("truncate ledger: %w", err)
	}
	return &Ledger{path: path}, nil
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Record appends an entry to the ledger file.
func (l *Ledger) Record(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if _, err := file.WriteString(entry.Line()); err != nil {
		_ = file.Close()
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Count returns the number of entries with the given item and status. An
// empty item matches every item.
func (l *Ledger) Count(item string, status Status) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if item != "" && e.Item != item {
			continue
		}
		if e.Status == status {
			n++
		}
	}
	return n
}

// Parse reads ledger lines back into entries. Malformed lines are skipped.
func Parse(data string) []Entry {
	var out []Entry
	for _, line := range strings.Split(data, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) < 3 {
			continue
		}
		entry := Entry{Item: parts[0], Status: Status(parts[1]), Stage: parts[2]}
		if len(parts) == 4 {
			entry.Note = parts[3]
		}
		out = append(out, entry)
	}
	return out
}

func clean(value string) string {
	value = strings.TrimSpace(value)
	return strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(value)
}
