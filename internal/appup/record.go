package appup

import (
	"strings"

	"github.com/pkg/errors"

	"appupgen/internal/term"
)

// ErrActionListParse is returned for a record file that cannot be read back
// safely. It is fatal: continuing would discard hand-written actions.
var ErrActionListParse = errors.New("action list parse error")

// Placeholder is the variable a record file uses for its own version. It is
// kept symbolic on rewrite.
const Placeholder = "VSN"

// Wildcard is the catch-all version matcher.
const Wildcard = ".*"

// Entry is the action list for upgrading from (or downgrading to) the
// versions Matcher names.
type Entry struct {
	Matcher term.Term // a string or binary literal
	Actions []Action
}

// IsWildcard reports whether the entry is the catch-all ".*" entry, written
// either as a string or as a binary.
func (e Entry) IsWildcard() bool {
	s, ok := term.AsText(e.Matcher)
	return ok && s == Wildcard
}

// Matches reports whether the entry is the specific entry for version. The
// wildcard never matches.
func (e Entry) Matches(version string) bool {
	s, ok := term.AsText(e.Matcher)
	return ok && s != Wildcard && s == version
}

// VersionedList is an ordered list of entries.
type VersionedList []Entry

// Lookup returns the entry for version.
func (l VersionedList) Lookup(version string) (Entry, bool) {
	for _, e := range l {
		if e.Matches(version) {
			return e, true
		}
	}
	return Entry{}, false
}

// Record is the content of one <app>.appup.src file.
type Record struct {
	Header    string    // leading comment lines, kept on rewrite
	Version   term.Term // usually the VSN placeholder
	Upgrade   VersionedList
	Downgrade VersionedList
}

// NewRecord returns the stub written for an application without a record:
// {VSN, [{".*", []}], [{".*", []}]}.
func NewRecord() Record {
	return Record{
		Version:   term.Var(Placeholder),
		Upgrade:   VersionedList{{Matcher: term.String(Wildcard), Actions: []Action{}}},
		Downgrade: VersionedList{{Matcher: term.String(Wildcard), Actions: []Action{}}},
	}
}

// Decode parses a record file body.
func Decode(data []byte) (Record, error) {
	form, err := term.ParseOne(data, Placeholder)
	if err != nil {
		return Record{}, errors.Wrapf(ErrActionListParse, "%v", err)
	}

	tup, ok := form.(term.Tuple)
	if !ok || len(tup) != 3 {
		return Record{}, errors.Wrap(ErrActionListParse, "expected {Vsn, UpInstructions, DownInstructions}")
	}

	up, err := decodeList(tup[1], "upgrade")
	if err != nil {
		return Record{}, err
	}
	down, err := decodeList(tup[2], "downgrade")
	if err != nil {
		return Record{}, err
	}
	return Record{Header: leadingComments(data), Version: tup[0], Upgrade: up, Downgrade: down}, nil
}

func decodeList(t term.Term, which string) (VersionedList, error) {
	l, ok := t.(term.List)
	if !ok {
		return nil, errors.Wrapf(ErrActionListParse, "%s instructions must be a list, got %s", which, term.Format(t))
	}
	out := make(VersionedList, 0, len(l))
	for i, item := range l {
		entry, ok := item.(term.Tuple)
		if !ok || len(entry) != 2 {
			return nil, errors.Wrapf(ErrActionListParse, "%s entry %d: expected {Vsn, Instructions}", which, i+1)
		}
		if _, ok := term.AsText(entry[0]); !ok {
			return nil, errors.Wrapf(ErrActionListParse, "%s entry %d: version must be a string, got %s", which, i+1, term.Format(entry[0]))
		}
		actions, ok := entry[1].(term.List)
		if !ok {
			return nil, errors.Wrapf(ErrActionListParse, "%s entry %d: instructions must be a list", which, i+1)
		}
		out = append(out, Entry{Matcher: entry[0], Actions: ParseActions(actions)})
	}
	return out, nil
}

func leadingComments(data []byte) string {
	var sb strings.Builder
	for _, line := range strings.SplitAfter(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "%") {
			break
		}
		sb.WriteString(strings.TrimRight(line, "\r\n"))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Encode renders a record with one action per line:
//
//	{VSN,
//	 [{"1.0.0",
//	   [{load_module, foo, brutal_purge, soft_purge, []}]},
//	  {".*", []}],
//	 [{".*", []}]}.
func Encode(r Record) []byte {
	var sb strings.Builder
	sb.WriteString(r.Header)
	sb.WriteByte('{')
	sb.WriteString(term.Format(r.Version))
	sb.WriteString(",\n ")
	writeList(&sb, r.Upgrade)
	sb.WriteString(",\n ")
	writeList(&sb, r.Downgrade)
	sb.WriteString("}.\n")
	return []byte(sb.String())
}

func writeList(sb *strings.Builder, l VersionedList) {
	sb.WriteByte('[')
	for i, e := range l {
		if i > 0 {
			sb.WriteString(",\n  ")
		}
		sb.WriteByte('{')
		sb.WriteString(term.Format(e.Matcher))
		if len(e.Actions) == 0 {
			sb.WriteString(", []}")
			continue
		}
		sb.WriteString(",\n   [")
		for j, a := range e.Actions {
			if j > 0 {
				sb.WriteString(",\n    ")
			}
			sb.WriteString(term.Format(a.Term()))
		}
		sb.WriteString("]}")
	}
	sb.WriteByte(']')
}

// Equal reports whether two records carry the same version term and the same
// entries with the same actions in the same order. Header comments are ignored.
func Equal(a, b Record) bool {
	return term.Equal(a.Version, b.Version) &&
		equalLists(a.Upgrade, b.Upgrade) &&
		equalLists(a.Downgrade, b.Downgrade)
}

func equalLists(a, b VersionedList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !term.Equal(a[i].Matcher, b[i].Matcher) || !EqualActions(a[i].Actions, b[i].Actions) {
			return false
		}
	}
	return true
}
