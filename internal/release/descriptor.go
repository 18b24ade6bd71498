// Package release indexes a built release: every application descriptor under
// the release root together with the content digests of its modules.
package release

import (
	"github.com/pkg/errors"

	"appupgen/internal/term"
)

// ErrDescriptorParse is returned for an application descriptor that cannot be
// read or lacks required properties.
var ErrDescriptorParse = errors.New("descriptor parse error")

// Descriptor is the subset of an application resource file the tool uses.
type Descriptor struct {
	Name    string
	Version string   // empty when vsn is not a literal string (e.g. {vsn, git} in .app.src)
	Modules []string // declared modules, informational
}

// ParseDescriptor reads {application, Name, Props}. from a .app or .app.src
// file body.
func ParseDescriptor(data []byte) (Descriptor, error) {
	form, err := term.ParseOne(data)
	if err != nil {
		return Descriptor{}, errors.Wrapf(ErrDescriptorParse, "%v", err)
	}

	tup, ok := form.(term.Tuple)
	if !ok || len(tup) != 3 {
		return Descriptor{}, errors.Wrap(ErrDescriptorParse, "expected {application, Name, Properties}")
	}
	if tag, _ := term.AsAtom(tup[0]); tag != "application" {
		return Descriptor{}, errors.Wrap(ErrDescriptorParse, "expected {application, Name, Properties}")
	}
	name, ok := term.AsAtom(tup[1])
	if !ok {
		return Descriptor{}, errors.Wrapf(ErrDescriptorParse, "application name must be an atom, got %s", term.Format(tup[1]))
	}
	props, ok := tup[2].(term.List)
	if !ok {
		return Descriptor{}, errors.Wrapf(ErrDescriptorParse, "application %s: properties must be a list", name)
	}

	d := Descriptor{Name: name}
	if vsn, ok := term.Proplist(props, "vsn"); ok {
		if s, ok := vsn.(term.String); ok {
			d.Version = string(s)
		}
	}
	if mods, ok := term.Proplist(props, "modules"); ok {
		if l, ok := mods.(term.List); ok {
			for _, m := range l {
				if a, ok := term.AsAtom(m); ok {
					d.Modules = append(d.Modules, a)
				}
			}
		}
	}
	return d, nil
}
