package appup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"appupgen/internal/appdiff"
	"appupgen/internal/term"

	"github.com/stretchr/testify/require"
)

const handWritten = `%% -*- mode: erlang -*-
%% upgrade instructions for demo
{VSN,
 [{"1.0.0",
   [{load_module, demo_srv},
    {update, demo_sup, supervisor},
    {apply, {demo, migrate, []}}]},
  {<<".*">>, [restart_new_emulator]}],
 [{"1.0.0", []},
  {<<".*">>, []}]}.
`

func TestDecode(t *testing.T) {
	r, err := Decode([]byte(handWritten))
	require.NoError(t, err)

	require.True(t, term.Equal(term.Var("VSN"), r.Version))
	require.Equal(t, "%% -*- mode: erlang -*-\n%% upgrade instructions for demo\n", r.Header)

	require.Len(t, r.Upgrade, 2)
	entry, ok := r.Upgrade.Lookup("1.0.0")
	require.True(t, ok)
	require.Len(t, entry.Actions, 3)
	require.IsType(t, LoadModule{}, entry.Actions[0])
	require.IsType(t, UpdateModule{}, entry.Actions[1])
	require.IsType(t, Opaque{}, entry.Actions[2])
	require.True(t, r.Upgrade[1].IsWildcard())

	require.Len(t, r.Downgrade, 2)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown variable", `{Vsn, [], []}.`},
		{"expression", `{VSN, [{"1", [{apply, {m, f, [1 + 1]}}]}], []}.`},
		{"not a triple", `{VSN, []}.`},
		{"upgrade not a list", `{VSN, up, []}.`},
		{"entry shape", `{VSN, [{"1"}], []}.`},
		{"entry version", `{VSN, [{one, []}], []}.`},
		{"instructions not a list", `{VSN, [{"1", load}], []}.`},
		{"syntax", `{VSN, [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			require.True(t, errors.Is(err, ErrActionListParse), "got %v", err)
		})
	}
}

func TestEncode_Layout(t *testing.T) {
	r := NewRecord()
	r.Upgrade, _ = EnsureEntry(r.Upgrade, "1.0.0")
	r.Upgrade = MergeEntry(r.Upgrade, "1.0.0", appdiff.Diff{Changed: []string{"a"}, Deleted: []string{"b"}})
	r.Downgrade, _ = EnsureEntry(r.Downgrade, "1.0.0")

	want := `{VSN,
 [{"1.0.0",
   [{load_module, a, brutal_purge, soft_purge, []},
    {delete_module, b}]},
  {".*", []}],
 [{"1.0.0", []},
  {".*", []}]}.
`
	require.Equal(t, want, string(Encode(r)))
}

func TestEncode_RoundTrip(t *testing.T) {
	r, err := Decode([]byte(handWritten))
	require.NoError(t, err)

	again, err := Decode(Encode(r))
	require.NoError(t, err)
	require.True(t, Equal(r, again))
	require.Equal(t, r.Header, again.Header)

	// rendering is stable
	require.Equal(t, string(Encode(r)), string(Encode(again)))
}

func TestEqual(t *testing.T) {
	a := NewRecord()
	b := NewRecord()
	require.True(t, Equal(a, b))

	b.Header = "%% different header\n"
	require.True(t, Equal(a, b))

	b.Upgrade, _ = EnsureEntry(b.Upgrade, "1.0.0")
	require.False(t, Equal(a, b))

	c := NewRecord()
	c.Downgrade = VersionedList{{Matcher: term.Binary(Wildcard), Actions: []Action{}}}
	require.False(t, Equal(a, c))
}

func TestStore_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "src", FileName("demo"))
	store := NewStore()

	require.False(t, store.Exists(path))
	_, err := store.Load(path)
	require.True(t, errors.Is(err, ErrRecordNotFound))

	r, err := Decode([]byte(handWritten))
	require.NoError(t, err)
	r.Upgrade = MergeEntry(r.Upgrade, "1.0.0", appdiff.Diff{Added: []string{"demo_new"}})

	require.NoError(t, store.Save(path, r))
	require.True(t, store.Exists(path))

	loaded, err := store.Load(path)
	require.NoError(t, err)
	require.True(t, Equal(r, loaded))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestStore_SavePermissions(t *testing.T) {
	dir := t.TempDir()
	r := NewRecord()
	store := &Store{Perm: 0600}

	created := filepath.Join(dir, FileName("fresh"))
	require.NoError(t, store.Save(created, r))
	info, err := os.Stat(created)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	existing := filepath.Join(dir, FileName("kept"))
	require.NoError(t, os.WriteFile(existing, []byte("{VSN, [], []}.\n"), 0640))
	require.NoError(t, os.Chmod(existing, 0640))
	require.NoError(t, store.Save(existing, r))
	info, err = os.Stat(existing)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0640), info.Mode().Perm())

	zero := filepath.Join(dir, FileName("zero"))
	require.NoError(t, (&Store{}).Save(zero, r))
	info, err = os.Stat(zero)
	require.NoError(t, err)
	require.Equal(t, DefaultPerm, info.Mode().Perm())
}

func TestStore_LoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName("demo"))
	require.NoError(t, os.WriteFile(path, []byte(`{VSN, [{"1", [{load_module, X}]}], []}.`), 0644))

	_, err := NewStore().Load(path)
	require.True(t, errors.Is(err, ErrActionListParse))
	require.Contains(t, err.Error(), path)
}
