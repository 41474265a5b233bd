package checkpoint

import "slices"

// Marker names a completed stage. Its presence in an item's set means the
// stage's output on disk is valid.
type Marker string

const (
	Downloaded        Marker = "DOWNLOADED"
	ReferenceSelected Marker = "REFERENCE_SELECTED"
	TaxonomyAssigned  Marker = "TAXONOMY_ASSIGNED"
	Trimmed           Marker = "TRIMMED"
	Downsampled       Marker = "DOWNSAMPLED"
	Assembled         Marker = "ASSEMBLED"
)

var order = []Marker{
	Downloaded,
	ReferenceSelected,
	TaxonomyAssigned,
	Trimmed,
	Downsampled,
	Assembled,
}

// Ordered returns every known marker in stage order.
func Ordered() []Marker {
	return slices.Clone(order)
}

// Known reports whether m is one of the stage markers.
func Known(m Marker) bool {
	return slices.Contains(order, m)
}

// After returns the markers strictly downstream of m. Unknown markers have
// no downstream.
func After(m Marker) []Marker {
	idx := slices.Index(order, m)
	if idx < 0 {
		return nil
	}
	return slices.Clone(order[idx+1:])
}

// From returns m followed by every marker downstream of it.
func From(m Marker) []Marker {
	idx := slices.Index(order, m)
	if idx < 0 {
		return nil
	}
	return slices.Clone(order[idx:])
}

// Earliest returns the most upstream of the given markers.
func Earliest(markers ...Marker) (Marker, bool) {
	best := -1
	for _, m := range markers {
		idx := slices.Index(order, m)
		if idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	if best < 0 {
		return "", false
	}
	return order[best], true
}
