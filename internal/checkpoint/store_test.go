package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"file":   NewFileStore(t.TempDir()),
		"memory": NewMemoryStore(),
	}
}

func TestStoreMissingItemIsEmpty(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			set, err := store.Markers("SRR1")
			if err != nil {
				t.Fatalf("Markers: %v", err)
			}
			if len(set) != 0 {
				t.Fatalf("expected empty set, got %v", set.Sorted())
			}
			ok, err := store.Has("SRR1", Trimmed)
			if err != nil || ok {
				t.Fatalf("Has on empty store: ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestStoreCompleteAndInvalidate(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			for _, m := range []Marker{ReferenceSelected, TaxonomyAssigned, Trimmed, Trimmed, Downsampled} {
				if err := store.Complete("SRR1", m); err != nil {
					t.Fatalf("Complete(%s): %v", m, err)
				}
			}
			if err := store.Invalidate("SRR1", After(TaxonomyAssigned)...); err != nil {
				t.Fatalf("Invalidate: %v", err)
			}
			set, err := store.Markers("SRR1")
			if err != nil {
				t.Fatalf("Markers: %v", err)
			}
			want := []Marker{ReferenceSelected, TaxonomyAssigned}
			if diff := cmp.Diff(want, set.Sorted()); diff != "" {
				t.Fatalf("markers mismatch (-want +got):\n%s", diff)
			}
			other, _ := store.Markers("SRR2")
			if len(other) != 0 {
				t.Fatalf("items must not share markers, got %v", other.Sorted())
			}
		})
	}
}

func TestFileStoreFormat(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root)
	for _, m := range []Marker{Trimmed, ReferenceSelected, Trimmed} {
		if err := store.Complete("SRR9", m); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}
	data, err := os.ReadFile(filepath.Join(root, "SRR9", StatusFile))
	if err != nil {
		t.Fatalf("read status: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if diff := cmp.Diff([]string{"REFERENCE_SELECTED", "TRIMMED"}, lines); diff != "" {
		t.Fatalf("status file mismatch (-want +got):\n%s", diff)
	}

	// A fresh store over the same root sees the persisted set, including
	// markers written by older versions.
	if err := os.WriteFile(filepath.Join(root, "SRR9", StatusFile), []byte("TRIMMED\n\nLEGACY\nTRIMMED\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := NewFileStore(root).Markers("SRR9")
	if err != nil {
		t.Fatalf("Markers: %v", err)
	}
	if diff := cmp.Diff([]Marker{Trimmed, "LEGACY"}, set.Sorted()); diff != "" {
		t.Fatalf("reloaded set mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderHelpers(t *testing.T) {
	if diff := cmp.Diff([]Marker{Downsampled, Assembled}, After(Trimmed)); diff != "" {
		t.Fatalf("After mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]Marker{Trimmed, Downsampled, Assembled}, From(Trimmed)); diff != "" {
		t.Fatalf("From mismatch:\n%s", diff)
	}
	if len(After(Assembled)) != 0 {
		t.Fatalf("expected nothing after last marker, got %v", After(Assembled))
	}
	if After("BOGUS") != nil {
		t.Fatal("unknown marker should have no downstream")
	}
	earliest, ok := Earliest(Assembled, TaxonomyAssigned, Downsampled)
	if !ok || earliest != TaxonomyAssigned {
		t.Fatalf("Earliest = %v %v", earliest, ok)
	}
	if _, ok := Earliest(); ok {
		t.Fatal("Earliest of nothing should report false")
	}
}
