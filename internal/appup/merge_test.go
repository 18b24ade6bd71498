package appup

import (
	"testing"

	"appupgen/internal/appdiff"
	"appupgen/internal/term"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

var moduleNames = []interface{}{"a", "b", "c", "d", "e", "f", "g"}

// genDiff generates a diff whose groups are disjoint and sorted, the shape
// appdiff.Compute produces.
func genDiff() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 3)).Map(func(kinds []int) appdiff.Diff {
		d := appdiff.Diff{Added: []string{}, Changed: []string{}, Deleted: []string{}}
		for i, k := range kinds {
			if i >= len(moduleNames) {
				break
			}
			m := moduleNames[i].(string)
			switch k {
			case 1:
				d.Added = append(d.Added, m)
			case 2:
				d.Changed = append(d.Changed, m)
			case 3:
				d.Deleted = append(d.Deleted, m)
			}
		}
		return d
	})
}

// genAction generates hand-written actions of every recognized shape plus
// opaque ones.
func genAction() gopter.Gen {
	return gen.OneGenOf(
		gen.OneConstOf(moduleNames...).Map(func(m string) Action {
			return ParseAction(term.Tuple{term.Atom("load_module"), term.Atom(m)})
		}),
		gen.OneConstOf(moduleNames...).Map(func(m string) Action {
			return ParseAction(term.Tuple{term.Atom("load_module"), term.Atom(m), term.List{term.Atom("x")}})
		}),
		gen.OneConstOf(moduleNames...).Map(func(m string) Action { return NewDeleteModule(m) }),
		gen.OneConstOf(moduleNames...).Map(func(m string) Action {
			return ParseAction(term.Tuple{term.Atom("update"), term.Atom(m), term.Tuple{term.Atom("advanced"), term.List{}}})
		}),
		gen.OneConstOf(moduleNames...).Map(func(m string) Action {
			return ParseAction(term.Tuple{term.Atom("purge"), term.List{term.Atom(m)}})
		}),
		gen.Const("restart_new_emulator").Map(func(s string) Action { return ParseAction(term.Atom(s)) }),
		gen.Const("apply").Map(func(s string) Action {
			return ParseAction(term.Tuple{term.Atom(s), term.Tuple{term.Atom("m"), term.Atom("f"), term.List{}}})
		}),
	)
}

func genActions() gopter.Gen {
	return gen.SliceOfN(4, genAction()).Map(func(as []Action) []Action {
		if as == nil {
			return []Action{}
		}
		return as
	})
}

func newParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	return parameters
}

// TestMerge_Idempotent checks that re-running a merge on its own output
// produces no further change.
func TestMerge_Idempotent(t *testing.T) {
	properties := gopter.NewProperties(newParameters())

	properties.Property("merge(d, merge(d, x)) == merge(d, x)", prop.ForAll(
		func(d appdiff.Diff, existing []Action) bool {
			once := Merge(d, existing)
			twice := Merge(d, once)
			return EqualActions(once, twice)
		},
		genDiff(),
		genActions(),
	))

	properties.TestingRun(t)
}

// TestMerge_PreservesManualEdits checks that a module an existing action
// covers never gets a second action, and the existing actions survive
// unchanged and contiguous.
func TestMerge_PreservesManualEdits(t *testing.T) {
	properties := gopter.NewProperties(newParameters())

	properties.Property("covered modules get no new action", prop.ForAll(
		func(d appdiff.Diff, existing []Action) bool {
			covered := Covered(existing)
			merged := Merge(d, existing)

			generated := len(merged) - len(existing)
			loads := 0
			for _, m := range append(append([]string{}, d.Changed...), d.Added...) {
				if !covered[m] {
					loads++
				}
			}
			if !EqualActions(existing, merged[loads:loads+len(existing)]) {
				return false
			}
			for i, a := range merged {
				if i >= loads && i < loads+len(existing) {
					continue
				}
				for _, m := range a.Covers() {
					if covered[m] {
						return false
					}
				}
			}
			return generated == loads+countUncovered(d.Deleted, covered)
		},
		genDiff(),
		genActions(),
	))

	properties.TestingRun(t)
}

func countUncovered(mods []string, covered map[string]bool) int {
	n := 0
	for _, m := range mods {
		if !covered[m] {
			n++
		}
	}
	return n
}

// TestMerge_Ordering checks that generated loads come first and generated
// deletes come last.
func TestMerge_Ordering(t *testing.T) {
	properties := gopter.NewProperties(newParameters())

	properties.Property("loads precede existing, deletes follow", prop.ForAll(
		func(d appdiff.Diff) bool {
			sentinel := ParseAction(term.Atom("restart_new_emulator"))
			merged := Merge(d, []Action{sentinel})

			pos := -1
			for i, a := range merged {
				if term.Equal(a.Term(), sentinel.Term()) {
					pos = i
				}
			}
			if pos < 0 {
				return false
			}
			for i, a := range merged {
				switch a.(type) {
				case LoadModule:
					if i > pos {
						return false
					}
				case DeleteModule:
					if i < pos {
						return false
					}
				}
			}
			return true
		},
		genDiff(),
	))

	properties.TestingRun(t)
}

// TestMergeEntry_WildcardUntouched checks that the wildcard entry is never
// modified, whatever the diff.
func TestMergeEntry_WildcardUntouched(t *testing.T) {
	properties := gopter.NewProperties(newParameters())

	properties.Property("wildcard entry is passed through", prop.ForAll(
		func(d appdiff.Diff, wildcardActions, entryActions []Action, binary bool) bool {
			var matcher term.Term = term.String(Wildcard)
			if binary {
				matcher = term.Binary(Wildcard)
			}
			l := VersionedList{
				{Matcher: term.String("1.0.0"), Actions: entryActions},
				{Matcher: matcher, Actions: wildcardActions},
			}
			out := MergeEntry(l, "1.0.0", d)
			out = MergeEntry(out, Wildcard, d)

			return len(out) == 2 &&
				term.Equal(out[1].Matcher, matcher) &&
				EqualActions(out[1].Actions, wildcardActions)
		},
		genDiff(),
		genActions(),
		genActions(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func render(actions []Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, term.Format(a.Term()))
	}
	return out
}

func TestMerge_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		diff     appdiff.Diff
		existing []Action
		want     []string
	}{
		{
			name: "deleted module against empty list",
			diff: appdiff.Diff{Deleted: []string{"b"}},
			want: []string{"{delete_module, b}"},
		},
		{
			name:     "module already handled",
			diff:     appdiff.Diff{Changed: []string{"b"}},
			existing: []Action{NewLoadModule("b")},
			want:     []string{"{load_module, b, brutal_purge, soft_purge, []}"},
		},
		{
			name:     "loads before existing, existing kept last",
			diff:     appdiff.Diff{Added: []string{"c"}, Changed: []string{"b"}},
			existing: []Action{NewDeleteModule("x")},
			want: []string{
				"{load_module, b, brutal_purge, soft_purge, []}",
				"{load_module, c, brutal_purge, soft_purge, []}",
				"{delete_module, x}",
			},
		},
		{
			name: "hand-written short form is kept verbatim",
			diff: appdiff.Diff{Changed: []string{"a", "b"}},
			existing: []Action{
				ParseAction(term.Tuple{term.Atom("load_module"), term.Atom("a")}),
			},
			want: []string{
				"{load_module, b, brutal_purge, soft_purge, []}",
				"{load_module, a}",
			},
		},
		{
			name: "purge covers its modules",
			diff: appdiff.Diff{Changed: []string{"a"}, Deleted: []string{"b"}},
			existing: []Action{
				ParseAction(term.Tuple{term.Atom("purge"), term.List{term.Atom("a"), term.Atom("b")}}),
			},
			want: []string{"{purge, [a, b]}"},
		},
		{
			name: "add_module covers its module",
			diff: appdiff.Diff{Added: []string{"n"}},
			existing: []Action{
				ParseAction(term.Tuple{term.Atom("add_module"), term.Atom("n")}),
			},
			want: []string{"{add_module, n}"},
		},
		{
			name: "opaque covers nothing",
			diff: appdiff.Diff{Changed: []string{"a"}},
			existing: []Action{
				ParseAction(term.Tuple{term.Atom("apply"), term.Tuple{term.Atom("a"), term.Atom("f"), term.List{}}}),
			},
			want: []string{
				"{load_module, a, brutal_purge, soft_purge, []}",
				"{apply, {a, f, []}}",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, render(Merge(tt.diff, tt.existing)))
		})
	}
}

func TestParseAction_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		input term.Term
		want  Action
	}{
		{"load 2", term.Tuple{term.Atom("load_module"), term.Atom("m")}, LoadModule{}},
		{"load 3", term.Tuple{term.Atom("load_module"), term.Atom("m"), term.List{}}, LoadModule{}},
		{"load 5", NewLoadModule("m").Term(), LoadModule{}},
		{"load 4 is opaque", term.Tuple{term.Atom("load_module"), term.Atom("m"), term.Atom("x"), term.Atom("y")}, Opaque{}},
		{"delete 2", term.Tuple{term.Atom("delete_module"), term.Atom("m")}, DeleteModule{}},
		{"delete 3", term.Tuple{term.Atom("delete_module"), term.Atom("m"), term.List{}}, DeleteModule{}},
		{"purge", term.Tuple{term.Atom("purge"), term.List{term.Atom("m")}}, PurgeModules{}},
		{"purge non-atoms", term.Tuple{term.Atom("purge"), term.List{term.String("m")}}, Opaque{}},
		{"update", term.Tuple{term.Atom("update"), term.Atom("m"), term.Atom("supervisor")}, UpdateModule{}},
		{"add_module", term.Tuple{term.Atom("add_module"), term.Atom("m")}, UpdateModule{}},
		{"module not atom", term.Tuple{term.Atom("load_module"), term.String("m")}, Opaque{}},
		{"bare atom", term.Atom("restart_new_emulator"), Opaque{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAction(tt.input)
			require.IsType(t, tt.want, got)
			require.True(t, term.Equal(tt.input, got.Term()))
		})
	}
}

func TestEnsureEntry(t *testing.T) {
	l := NewRecord().Upgrade

	out, inserted := EnsureEntry(l, "1.0.0")
	require.True(t, inserted)
	require.Len(t, out, 2)
	require.True(t, out[0].Matches("1.0.0"))
	require.True(t, out[1].IsWildcard())

	again, inserted := EnsureEntry(out, "1.0.0")
	require.False(t, inserted)
	require.Len(t, again, 2)
}

func TestEnsureEntry_WildcardIsNotAVersion(t *testing.T) {
	out, inserted := EnsureEntry(NewRecord().Upgrade, Wildcard)
	require.True(t, inserted)
	require.Len(t, out, 2)
}

func TestMergeEntry_DoesNotAliasInput(t *testing.T) {
	l := VersionedList{{Matcher: term.String("1.0.0"), Actions: []Action{}}}
	out := MergeEntry(l, "1.0.0", appdiff.Diff{Changed: []string{"m"}})
	require.Empty(t, l[0].Actions)
	require.Len(t, out[0].Actions, 1)
}
