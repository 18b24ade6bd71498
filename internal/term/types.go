// Package term implements the restricted Erlang term syntax used by release
// descriptors (.app, .app.src) and upgrade files (.appup.src).
//
// Only data literals are accepted: atoms, strings, binaries holding a single
// string, integers, floats, character literals, tuples, lists and maps. Variables are rejected unless the caller
// names them as placeholders, and they are kept symbolic (never expanded), so a
// file can be read and rewritten without evaluating anything.
package term

// Term is a parsed data literal.
type Term interface {
	isTerm()
}

// Atom is a bare or quoted atom such as load_module or 'Elixir.Foo'.
type Atom string

func (Atom) isTerm() {}

// String is a double-quoted string literal.
type String string

func (String) isTerm() {}

// Binary is a binary literal wrapping one string, e.g. <<".*">>.
type Binary string

func (Binary) isTerm() {}

// Integer is a decimal integer literal.
type Integer int64

func (Integer) isTerm() {}

// Float is a float literal, kept as written (0.5, 1.0e-3).
type Float string

func (Float) isTerm() {}

// Char is a character literal such as $a or $\n.
type Char rune

func (Char) isTerm() {}

// Tuple is {A, B, ...}.
type Tuple []Term

func (Tuple) isTerm() {}

// List is [A, B, ...].
type List []Term

func (List) isTerm() {}

// MapPair is one K => V association of a map.
type MapPair struct {
	Key   Term
	Value Term
}

// Map is #{K => V, ...}. Pairs keep their source order.
type Map []MapPair

func (Map) isTerm() {}

// Var is a placeholder variable the caller allowed, e.g. VSN.
type Var string

func (Var) isTerm() {}

// AsAtom returns the atom name if t is an atom.
func AsAtom(t Term) (string, bool) {
	a, ok := t.(Atom)
	return string(a), ok
}

// AsText returns the text of a string or binary literal.
func AsText(t Term) (string, bool) {
	switch v := t.(type) {
	case String:
		return string(v), true
	case Binary:
		return string(v), true
	}
	return "", false
}

// Equal reports whether two terms are structurally identical, including the
// literal kind (a String never equals a Binary with the same text).
func Equal(a, b Term) bool {
	switch x := a.(type) {
	case Atom, String, Binary, Integer, Float, Char, Var:
		return a == b
	case Tuple:
		y, ok := b.(Tuple)
		return ok && equalSlices(x, y)
	case List:
		y, ok := b.(List)
		return ok && equalSlices(x, y)
	case Map:
		y, ok := b.(Map)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i].Key, y[i].Key) || !Equal(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	}
	return false
}

func equalSlices(a, b []Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Proplist looks up key in a list of {Key, Value} tuples, the way .app
// descriptors store their properties.
func Proplist(l List, key string) (Term, bool) {
	for _, item := range l {
		tup, ok := item.(Tuple)
		if !ok || len(tup) != 2 {
			continue
		}
		if k, ok := AsAtom(tup[0]); ok && k == key {
			return tup[1], true
		}
	}
	return nil, false
}
