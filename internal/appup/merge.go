package appup

import (
	"sort"

	"appupgen/internal/appdiff"
	"appupgen/internal/term"
)

// Covered returns the set of modules any of actions already handles.
func Covered(actions []Action) map[string]bool {
	covered := make(map[string]bool)
	for _, a := range actions {
		for _, m := range a.Covers() {
			covered[m] = true
		}
	}
	return covered
}

// Merge folds a module diff into an existing action list. Modules that an
// existing action already covers are left alone. The result is
//
//	load_module for uncovered changed and added modules (sorted)
//	++ existing actions, unchanged and in place
//	++ delete_module for uncovered deleted modules (sorted)
//
// Merge(d, Merge(d, x)) equals Merge(d, x) because every generated action
// covers its module.
func Merge(d appdiff.Diff, existing []Action) []Action {
	covered := Covered(existing)

	var loads []string
	for _, m := range d.Changed {
		if !covered[m] {
			loads = append(loads, m)
		}
	}
	for _, m := range d.Added {
		if !covered[m] {
			loads = append(loads, m)
		}
	}
	sort.Strings(loads)

	var deletes []string
	for _, m := range d.Deleted {
		if !covered[m] {
			deletes = append(deletes, m)
		}
	}
	sort.Strings(deletes)

	out := make([]Action, 0, len(loads)+len(existing)+len(deletes))
	for _, m := range loads {
		out = append(out, NewLoadModule(m))
	}
	out = append(out, existing...)
	for _, m := range deletes {
		out = append(out, NewDeleteModule(m))
	}
	return out
}

// MergeEntry applies Merge to the entry for version and returns a new list.
// Other entries, the wildcard included, are passed through untouched. A list
// without an entry for version is returned as is.
func MergeEntry(l VersionedList, version string, d appdiff.Diff) VersionedList {
	out := make(VersionedList, len(l))
	copy(out, l)
	for i, e := range out {
		if e.Matches(version) {
			out[i] = Entry{Matcher: e.Matcher, Actions: Merge(d, e.Actions)}
			break
		}
	}
	return out
}

// EnsureEntry returns l with an empty entry for version inserted at the front
// when none exists. The second result reports whether one was inserted.
func EnsureEntry(l VersionedList, version string) (VersionedList, bool) {
	if _, ok := l.Lookup(version); ok {
		return l, false
	}
	out := make(VersionedList, 0, len(l)+1)
	out = append(out, Entry{Matcher: term.String(version), Actions: []Action{}})
	out = append(out, l...)
	return out, true
}
