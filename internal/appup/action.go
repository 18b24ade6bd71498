// Package appup models upgrade records (<app>.appup.src files): the ordered
// upgrade and downgrade action lists keyed by the version they apply to, and
// the merge of a module diff into those lists.
package appup

import (
	"appupgen/internal/term"
)

// Action is one instruction of an action list. Every action keeps the term it
// was read from, so hand-written forms are rendered back unchanged.
type Action interface {
	// Term is the literal rendered into the record file.
	Term() term.Term
	// Covers lists the modules this action already handles.
	Covers() []string
}

// LoadModule reloads a module's code.
type LoadModule struct {
	Module string
	raw    term.Tuple
}

// NewLoadModule returns the generated form
// {load_module, M, brutal_purge, soft_purge, []}.
func NewLoadModule(module string) LoadModule {
	return LoadModule{
		Module: module,
		raw: term.Tuple{
			term.Atom("load_module"), term.Atom(module),
			term.Atom("brutal_purge"), term.Atom("soft_purge"), term.List{},
		},
	}
}

func (a LoadModule) Term() term.Term  { return a.raw }
func (a LoadModule) Covers() []string { return []string{a.Module} }

// DeleteModule removes a module.
type DeleteModule struct {
	Module string
	raw    term.Tuple
}

// NewDeleteModule returns the generated form {delete_module, M}.
func NewDeleteModule(module string) DeleteModule {
	return DeleteModule{
		Module: module,
		raw:    term.Tuple{term.Atom("delete_module"), term.Atom(module)},
	}
}

func (a DeleteModule) Term() term.Term  { return a.raw }
func (a DeleteModule) Covers() []string { return []string{a.Module} }

// PurgeModules purges old code of several modules. It is only ever read, never
// generated.
type PurgeModules struct {
	Modules []string
	raw     term.Tuple
}

func (a PurgeModules) Term() term.Term  { return a.raw }
func (a PurgeModules) Covers() []string { return a.Modules }

// UpdateModule is a hand-written {update, M, ...} or {add_module, M[, Deps]}.
// Either form means the author already decided how M is upgraded.
type UpdateModule struct {
	Module string
	raw    term.Tuple
}

func (a UpdateModule) Term() term.Term  { return a.raw }
func (a UpdateModule) Covers() []string { return []string{a.Module} }

// Opaque is any instruction the merge does not interpret, e.g.
// {apply, {M, F, A}} or restart_new_emulator. It covers nothing.
type Opaque struct {
	raw term.Term
}

func (a Opaque) Term() term.Term  { return a.raw }
func (a Opaque) Covers() []string { return nil }

// ParseAction classifies one element of an action list. It never fails:
// anything unrecognized becomes Opaque.
func ParseAction(t term.Term) Action {
	tup, ok := t.(term.Tuple)
	if !ok || len(tup) < 2 {
		return Opaque{raw: t}
	}
	tag, ok := term.AsAtom(tup[0])
	if !ok {
		return Opaque{raw: t}
	}

	if tag == "purge" && len(tup) == 2 {
		mods, ok := atomList(tup[1])
		if !ok {
			return Opaque{raw: t}
		}
		return PurgeModules{Modules: mods, raw: tup}
	}

	mod, ok := term.AsAtom(tup[1])
	if !ok {
		return Opaque{raw: t}
	}
	switch {
	case tag == "load_module" && (len(tup) == 2 || len(tup) == 3 || len(tup) == 5):
		return LoadModule{Module: mod, raw: tup}
	case tag == "delete_module" && (len(tup) == 2 || len(tup) == 3):
		return DeleteModule{Module: mod, raw: tup}
	case tag == "add_module" && (len(tup) == 2 || len(tup) == 3):
		return UpdateModule{Module: mod, raw: tup}
	case tag == "update":
		return UpdateModule{Module: mod, raw: tup}
	}
	return Opaque{raw: t}
}

func atomList(t term.Term) ([]string, bool) {
	l, ok := t.(term.List)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(l))
	for _, item := range l {
		a, ok := term.AsAtom(item)
		if !ok {
			return nil, false
		}
		out = append(out, a)
	}
	return out, true
}

// ParseActions classifies every element of an action list.
func ParseActions(l term.List) []Action {
	out := make([]Action, 0, len(l))
	for _, t := range l {
		out = append(out, ParseAction(t))
	}
	return out
}

// ActionsTerm renders actions as a list literal.
func ActionsTerm(actions []Action) term.List {
	out := make(term.List, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Term())
	}
	return out
}

// EqualActions reports whether two action lists render identically, in order.
func EqualActions(a, b []Action) bool {
	return term.Equal(ActionsTerm(a), ActionsTerm(b))
}
