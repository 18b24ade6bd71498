package term

import (
	"strconv"
	"strings"
)

// reserved words must be quoted when used as atoms.
var reserved = map[string]bool{
	"after": true, "and": true, "andalso": true, "band": true, "begin": true,
	"bnot": true, "bor": true, "bsl": true, "bsr": true, "bxor": true,
	"case": true, "catch": true, "cond": true, "div": true, "end": true,
	"fun": true, "if": true, "let": true, "maybe": true, "not": true,
	"of": true, "or": true, "orelse": true, "receive": true, "rem": true,
	"try": true, "when": true, "xor": true,
}

// Format renders t on a single line in Erlang syntax. Parse(Format(t)+".")
// yields t again.
func Format(t Term) string {
	var sb strings.Builder
	write(&sb, t)
	return sb.String()
}

func write(sb *strings.Builder, t Term) {
	switch v := t.(type) {
	case Atom:
		sb.WriteString(FormatAtom(string(v)))
	case String:
		sb.WriteString(quote(string(v), '"'))
	case Binary:
		sb.WriteString("<<")
		sb.WriteString(quote(string(v), '"'))
		sb.WriteString(">>")
	case Integer:
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	case Float:
		sb.WriteString(string(v))
	case Char:
		sb.WriteString(formatChar(rune(v)))
	case Var:
		sb.WriteString(string(v))
	case Tuple:
		writeSeq(sb, '{', '}', v)
	case List:
		writeSeq(sb, '[', ']', v)
	case Map:
		sb.WriteString("#{")
		for i, pair := range v {
			if i > 0 {
				sb.WriteString(", ")
			}
			write(sb, pair.Key)
			sb.WriteString(" => ")
			write(sb, pair.Value)
		}
		sb.WriteByte('}')
	}
}

func formatChar(r rune) string {
	switch r {
	case '\n':
		return `$\n`
	case '\t':
		return `$\t`
	case '\r':
		return `$\r`
	case ' ':
		return `$\s`
	case '\\':
		return `$\\`
	case 0x1b:
		return `$\e`
	case 0:
		return `$\0`
	}
	return "$" + string(r)
}

func writeSeq(sb *strings.Builder, open, close byte, elems []Term) {
	sb.WriteByte(open)
	for i, e := range elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		write(sb, e)
	}
	sb.WriteByte(close)
}

// FormatAtom renders an atom, quoting it when the bare form would not read
// back as the same atom.
func FormatAtom(name string) string {
	if isBareAtom(name) {
		return name
	}
	return quote(name, '\'')
}

func isBareAtom(name string) bool {
	if name == "" || reserved[name] {
		return false
	}
	if name[0] < 'a' || name[0] > 'z' {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isNameChar(name[i]) {
			return false
		}
	}
	return true
}

func quote(s string, q byte) string {
	var sb strings.Builder
	sb.WriteByte(q)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case q:
			sb.WriteByte('\\')
			sb.WriteByte(ch)
		default:
			sb.WriteByte(ch)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}
