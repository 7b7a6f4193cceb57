package calibgraph

import "slices"

// NormalizeTargets returns a sorted copy of targets with duplicates and
// empty identifiers removed. Every target set handled by the orchestrator is
// normalized so that iteration order is deterministic.
func NormalizeTargets(targets []string) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// unionTargets merges two normalized target sets.
func unionTargets(a, b []string) []string {
	if len(a) == 0 {
		return slices.Clone(b)
	}
	if len(b) == 0 {
		return slices.Clone(a)
	}
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}

// containsTarget reports whether the normalized set contains t.
func containsTarget(targets []string, t string) bool {
	_, found := slices.BinarySearch(targets, t)
	return found
}

// targetsWith returns, in sorted order, the targets whose outcome is o.
func targetsWith(outcomes map[string]Outcome, o Outcome) []string {
	var out []string
	for t, got := range outcomes {
		if got == o {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

// outcomeStrings converts an outcome map to its text form.
func outcomeStrings(outcomes map[string]Outcome) map[string]string {
	out := make(map[string]string, len(outcomes))
	for t, o := range outcomes {
		out[t] = o.String()
	}
	return out
}
