package appup

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrRecordNotFound is returned when a record file doesn't exist.
var ErrRecordNotFound = errors.New("appup record not found")

// FileSuffix is appended to the application name to form a record file name.
const FileSuffix = ".appup.src"

// FileName returns the record file name for app.
func FileName(app string) string {
	return app + FileSuffix
}

// DefaultPerm is the mode of newly created record files.
const DefaultPerm os.FileMode = 0644

// Store manages record persistence.
type Store struct {
	// Perm is the mode given to a record file that does not exist yet. An
	// existing file keeps its own mode when it is rewritten.
	Perm os.FileMode
}

// NewStore creates a store that creates records with DefaultPerm.
func NewStore() *Store {
	return &Store{Perm: DefaultPerm}
}

// Load reads the record at path.
func (s *Store) Load(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, errors.Wrapf(err, "reading %s", path)
	}

	r, err := Decode(data)
	if err != nil {
		return Record{}, errors.Wrapf(err, "%s", path)
	}
	return r, nil
}

// Save writes r to path, replacing the file atomically.
func (s *Store) Save(path string, r Record) error {
	perm := s.Perm
	if perm == 0 {
		perm = DefaultPerm
	}
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return writeFileAtomic(path, Encode(r), perm)
}

// Exists checks if a record file exists.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := tmp.Chmod(perm); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrapf(err, "replacing %s", path)
	}
	committed = true
	return nil
}
