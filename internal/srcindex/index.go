// Package srcindex locates the source-side files of each application: its
// upgrade record (<app>.appup.src) and resource descriptor (<app>.app.src).
package srcindex

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"appupgen/internal/appup"
	"appupgen/internal/release"
)

// DefaultRoots are the directories searched below the project directory.
var DefaultRoots = []string{"apps", "src", "lib"}

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	"_build": true,
	".git":   true,
	"deps":   true,
}

const appSrcSuffix = ".app.src"

// Files are the known source files of one application.
type Files struct {
	AppupPath  string // existing <app>.appup.src, empty if none
	AppSrcPath string // <app>.app.src, empty if none
}

// Index maps application name to its source files.
type Index map[string]Files

// Build walks each root (relative roots are resolved against projectDir).
// Missing roots are skipped. When the same file name appears twice the first
// one in sorted path order wins and the duplicate is logged.
func Build(projectDir string, roots []string, log *zap.SugaredLogger) (Index, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var paths []string
	for _, root := range roots {
		if !filepath.IsAbs(root) {
			root = filepath.Join(projectDir, root)
		}
		if _, err := os.Stat(root); err != nil {
			if os.IsNotExist(err) {
				log.Debugw("source root missing", "root", root)
				continue
			}
			return nil, errors.Wrapf(err, "source root %s", root)
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			name := d.Name()
			if strings.HasSuffix(name, appup.FileSuffix) || strings.HasSuffix(name, appSrcSuffix) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "scanning %s", root)
		}
	}
	sort.Strings(paths)

	idx := make(Index)
	for _, path := range paths {
		name := filepath.Base(path)
		if app, ok := strings.CutSuffix(name, appup.FileSuffix); ok {
			f := idx[app]
			if f.AppupPath != "" {
				log.Warnw("duplicate appup record ignored", "app", app, "kept", f.AppupPath, "ignored", path)
				continue
			}
			f.AppupPath = path
			idx[app] = f
			continue
		}
		app := declaredName(path, strings.TrimSuffix(name, appSrcSuffix), log)
		f := idx[app]
		if f.AppSrcPath != "" {
			log.Warnw("duplicate app.src ignored", "app", app, "kept", f.AppSrcPath, "ignored", path)
			continue
		}
		f.AppSrcPath = path
		idx[app] = f
	}

	log.Debugw("source index built", "applications", len(idx))
	return idx, nil
}

// declaredName prefers the name an app.src declares over its file name. The
// descriptor may use syntax the term reader does not accept (funs or macros in
// env), in which case the file name is used.
func declaredName(path, fallback string, log *zap.SugaredLogger) string {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Debugw("app.src not readable, using file name", "path", path, "error", err)
		return fallback
	}
	desc, err := release.ParseDescriptor(data)
	if err != nil {
		log.Debugw("app.src not readable, using file name", "path", path, "error", err)
		return fallback
	}
	if desc.Name != fallback {
		log.Debugw("app.src declares a different name", "path", path, "name", desc.Name)
	}
	return desc.Name
}

// RecordPath returns where the upgrade record of app lives: the existing
// record if there is one, otherwise the path a new record would take next to
// the app.src descriptor. exists reports whether the file is already there.
// ok is false when the application has neither.
func (idx Index) RecordPath(app string) (path string, exists bool, ok bool) {
	f, found := idx[app]
	if !found {
		return "", false, false
	}
	if f.AppupPath != "" {
		return f.AppupPath, true, true
	}
	if f.AppSrcPath != "" {
		return filepath.Join(filepath.Dir(f.AppSrcPath), appup.FileName(app)), false, true
	}
	return "", false, false
}
