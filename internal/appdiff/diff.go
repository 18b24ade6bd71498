// Package appdiff compares two module indexes of the same application.
package appdiff

import (
	"fmt"
	"sort"

	"appupgen/internal/release"
)

// ChangeType represents how a module differs between two releases.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"   // Module in new but not old
	ChangeChanged ChangeType = "changed" // Module in both with different digests
	ChangeDeleted ChangeType = "deleted" // Module in old but not new
)

// ViolationKind names a recoverable consistency problem.
type ViolationKind string

// VersionNotBumped is reported when code changed but the application version
// stayed the same.
const VersionNotBumped ViolationKind = "version_not_bumped"

// Violation is a consistency problem found while diffing. It invalidates the
// run without aborting it.
type Violation struct {
	Kind    ViolationKind `json:"kind" yaml:"kind"`
	App     string        `json:"app" yaml:"app"`
	Version string        `json:"version,omitempty" yaml:"version,omitempty"`
	Message string        `json:"message" yaml:"message"`
}

func (v Violation) String() string {
	return v.Message
}

// Diff lists module names per change type. Each slice is sorted and the three
// are pairwise disjoint.
type Diff struct {
	Added   []string `json:"added" yaml:"added"`
	Changed []string `json:"changed" yaml:"changed"`
	Deleted []string `json:"deleted" yaml:"deleted"`
}

// Empty reports whether no module differs.
func (d Diff) Empty() bool {
	return d.Len() == 0
}

// Len is the total number of differing modules.
func (d Diff) Len() int {
	return len(d.Added) + len(d.Changed) + len(d.Deleted)
}

// Modules returns every differing module name, sorted.
func (d Diff) Modules() []string {
	out := make([]string, 0, d.Len())
	out = append(out, d.Added...)
	out = append(out, d.Changed...)
	out = append(out, d.Deleted...)
	sort.Strings(out)
	return out
}

// Result is the outcome of diffing one application.
type Result struct {
	Diff      Diff
	Violation *Violation
}

// Compute compares the module indexes of app between a new and an old release.
// Upgrade direction is Compute(app, current, predecessor); downgrade is the
// same call with the arguments swapped.
func Compute(app string, newIdx, oldIdx release.AppIndex) Result {
	d := Diff{Added: []string{}, Changed: []string{}, Deleted: []string{}}

	// Collect all module names from both sides
	all := make(map[string]bool, len(newIdx.Modules)+len(oldIdx.Modules))
	for m := range newIdx.Modules {
		all[m] = true
	}
	for m := range oldIdx.Modules {
		all[m] = true
	}

	// Sort for deterministic output
	names := make([]string, 0, len(all))
	for m := range all {
		names = append(names, m)
	}
	sort.Strings(names)

	for _, m := range names {
		newSum, inNew := newIdx.Modules[m]
		oldSum, inOld := oldIdx.Modules[m]

		switch {
		case inNew && !inOld:
			d.Added = append(d.Added, m)
		case !inNew && inOld:
			d.Deleted = append(d.Deleted, m)
		case newSum != oldSum:
			d.Changed = append(d.Changed, m)
		}
	}

	res := Result{Diff: d}
	if newIdx.Version == oldIdx.Version && !d.Empty() {
		res.Violation = &Violation{
			Kind:    VersionNotBumped,
			App:     app,
			Version: newIdx.Version,
			Message: fmt.Sprintf("%s: %d module(s) differ but version is still %s", app, d.Len(), newIdx.Version),
		}
	}
	return res
}
