package geo

import (
	"donorprep/internal/util"
)

// Index resolves free-text residences against the boundary names. Results
// are memoized; an Index is not safe for concurrent use.
type Index struct {
	Names    []string
	ByName   map[string]struct{}
	cutoff   float64
	resolved map[string]*string
}

func BuildIndex(names []string, cutoff float64) *Index {
	idx := &Index{
		Names:    append([]string(nil), names...),
		ByName:   map[string]struct{}{},
		cutoff:   cutoff,
		resolved: map[string]*string{},
	}
	for _, name := range names {
		idx.ByName[name] = struct{}{}
	}
	return idx
}

// Resolve returns the closest boundary name, or nil when the value is
// missing or no name reaches the cutoff.
func (idx *Index) Resolve(value string) *string {
	if match, ok := idx.resolved[value]; ok {
		return match
	}
	var match *string
	if _, ok := idx.ByName[value]; ok {
		match = util.StringPtr(value)
	} else {
		match = util.FixArrondissementCutoff(value, idx.Names, idx.cutoff)
	}
	idx.resolved[value] = match
	return match
}
