package release

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"appupgen/internal/beam"
)

// AppIndex describes one application of a release. It is never persisted.
type AppIndex struct {
	Name    string
	Version string
	Modules map[string]string // module name -> content digest
	Dir     string            // the ebin directory
}

// Indexer builds per-application module indexes of a release directory.
type Indexer struct {
	Logger *zap.SugaredLogger
}

// Index indexes root with a silent logger.
func Index(root string) (map[string]AppIndex, error) {
	return Indexer{}.Index(root)
}

// Index walks root for <app>.app descriptors located in ebin directories and
// hashes the modules next to each one.
func (ix Indexer) Index(root string) (map[string]AppIndex, error) {
	log := ix.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(beam.ErrArtifactRead, "release %s: %v", root, err)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(beam.ErrArtifactRead, "release %s is not a directory", root)
	}

	apps := make(map[string]AppIndex)
	var hashed uint64
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return errors.Wrapf(beam.ErrArtifactRead, "%s: %v", path, walkErr)
		}
		if d.IsDir() {
			return nil
		}
		dir := filepath.Dir(path)
		if filepath.Base(dir) != "ebin" {
			return nil
		}

		switch {
		case strings.HasSuffix(d.Name(), beam.Extension):
			if fi, err := d.Info(); err == nil {
				hashed += uint64(fi.Size())
			}
			return nil
		case !strings.HasSuffix(d.Name(), ".app"):
			return nil
		}

		app, err := indexApp(path)
		if err != nil {
			return err
		}
		if prev, dup := apps[app.Name]; dup {
			return errors.Wrapf(ErrDescriptorParse, "application %s declared twice (%s and %s)", app.Name, prev.Dir, app.Dir)
		}
		apps[app.Name] = app
		log.Debugw("indexed application", "app", app.Name, "vsn", app.Version, "modules", len(app.Modules))
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Infof("indexed %d applications in %s (%s of modules)", len(apps), root, humanize.Bytes(hashed))
	return apps, nil
}

func indexApp(path string) (AppIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AppIndex{}, errors.Wrapf(ErrDescriptorParse, "%s: %v", path, err)
	}
	desc, err := ParseDescriptor(data)
	if err != nil {
		return AppIndex{}, errors.Wrapf(err, "%s", path)
	}
	if desc.Version == "" {
		return AppIndex{}, errors.Wrapf(ErrDescriptorParse, "%s: missing or non-string vsn", path)
	}

	dir := filepath.Dir(path)
	modules, err := beam.IndexDir(dir)
	if err != nil {
		return AppIndex{}, err
	}
	return AppIndex{Name: desc.Name, Version: desc.Version, Modules: modules, Dir: dir}, nil
}
