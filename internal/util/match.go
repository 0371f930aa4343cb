package util

import (
	"github.com/pmezard/go-difflib/difflib"

	"donorprep/internal"
)

// DefaultMatchCutoff is the minimum similarity ratio a candidate must reach.
const DefaultMatchCutoff = 0.6

// ClosestMatch returns the candidate most similar to value by sequence-matcher
// ratio, or nil when none reaches cutoff. Equal ratios are broken in favour
// of the lexically greater candidate.
func ClosestMatch(value string, candidates []string, cutoff float64) *string {
	if len(candidates) == 0 {
		return nil
	}

	m := difflib.NewMatcher(nil, splitRunes(value))
	bestRatio := -1.0
	best := ""
	found := false
	for _, candidate := range candidates {
		m.SetSeq1(splitRunes(candidate))
		if m.RealQuickRatio() < cutoff || m.QuickRatio() < cutoff {
			continue
		}
		ratio := m.Ratio()
		if ratio < cutoff {
			continue
		}
		if !found || ratio > bestRatio || (ratio == bestRatio && candidate > best) {
			bestRatio = ratio
			best = candidate
			found = true
		}
	}
	if !found {
		return nil
	}
	return StringPtr(best)
}

// FixArrondissement resolves a free-text residence to one of the boundary
// names. Empty and missing values resolve to nil.
func FixArrondissement(value string, candidates []string) *string {
	return FixArrondissementCutoff(value, candidates, DefaultMatchCutoff)
}

func FixArrondissementCutoff(value string, candidates []string, cutoff float64) *string {
	if value == "" || value == internal.MissingValue {
		return nil
	}
	return ClosestMatch(value, candidates, cutoff)
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
