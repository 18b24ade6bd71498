// Package releasetest lays out release directories for tests.
package releasetest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"appupgen/internal/beam/beamtest"
)

// App writes <root>/lib/<name>-<vsn>/ebin with a descriptor and one .beam per
// entry of modules (module name -> code). It returns the ebin directory.
func App(t testing.TB, root, name, vsn string, modules map[string]string) string {
	t.Helper()
	ebin := filepath.Join(root, "lib", name+"-"+vsn, "ebin")
	if err := os.MkdirAll(ebin, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", ebin, err)
	}

	names := make([]string, 0, len(modules))
	for m := range modules {
		names = append(names, m)
	}
	sort.Strings(names)
	for _, m := range names {
		beamtest.WriteModule(t, ebin, m, modules[m])
	}

	desc := fmt.Sprintf("{application, %s,\n [{description, \"test\"},\n  {vsn, %q},\n  {modules, [%s]}]}.\n",
		name, vsn, strings.Join(names, ", "))
	path := filepath.Join(ebin, name+".app")
	if err := os.WriteFile(path, []byte(desc), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return ebin
}
