// Package beam computes content digests of compiled modules.
//
// A .beam file is an IFF container ("FOR1" <size> "BEAM" followed by 4-byte
// aligned chunks). The digest covers only the chunks that define runtime
// behaviour, so rebuilding a module with a different compile time, source
// path or debug info does not register as a code change.
package beam

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrArtifactRead is returned when a module artifact cannot be read or is not
// a well-formed BEAM container.
var ErrArtifactRead = errors.New("artifact read error")

// Extension is the file extension of compiled modules.
const Extension = ".beam"

// codeChunks are hashed in this order when present.
var codeChunks = []string{"Atom", "AtU8", "Code", "StrT", "ImpT", "ExpT", "FunT", "LitT", "Meta"}

// Digest returns "sha256:<hex>" over the code chunks of a BEAM image.
func Digest(data []byte) (string, error) {
	chunks, err := readChunks(data)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	found := 0
	for _, id := range codeChunks {
		body, ok := chunks[id]
		if !ok {
			continue
		}
		found++
		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(len(body)))
		h.Write([]byte(id))
		h.Write(size[:])
		h.Write(body)
	}
	if found == 0 {
		return "", errors.Wrap(ErrArtifactRead, "no code chunks")
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// readChunks splits a BEAM image into chunk id -> body. The first occurrence
// of an id wins.
func readChunks(data []byte) (map[string][]byte, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("FOR1")) || !bytes.Equal(data[8:12], []byte("BEAM")) {
		return nil, errors.Wrap(ErrArtifactRead, "missing FOR1/BEAM header")
	}
	declared := int(binary.BigEndian.Uint32(data[4:8]))
	if declared+8 > len(data) {
		return nil, errors.Wrapf(ErrArtifactRead, "truncated container: header says %d bytes, have %d", declared+8, len(data))
	}
	end := declared + 8

	chunks := make(map[string][]byte)
	pos := 12
	for pos < end {
		if pos+8 > end {
			return nil, errors.Wrapf(ErrArtifactRead, "truncated chunk header at offset %d", pos)
		}
		id := string(data[pos : pos+4])
		size := int(binary.BigEndian.Uint32(data[pos+4 : pos+8]))
		start := pos + 8
		if start+size > end {
			return nil, errors.Wrapf(ErrArtifactRead, "chunk %q overruns container", id)
		}
		if _, seen := chunks[id]; !seen {
			chunks[id] = data[start : start+size]
		}
		pos = start + align4(size)
	}
	return chunks, nil
}

func align4(n int) int {
	return (n + 3) &^ 3
}

// HashFile reads and digests one module file.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(ErrArtifactRead, "%s: %v", path, err)
	}
	sum, err := Digest(data)
	if err != nil {
		return "", errors.Wrapf(err, "%s", path)
	}
	return sum, nil
}

// IndexDir maps module name -> digest for every .beam file directly inside
// dir. Subdirectories are not scanned.
func IndexDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(ErrArtifactRead, "reading %s: %v", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	modules := make(map[string]string, len(names))
	for _, name := range names {
		sum, err := HashFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		modules[strings.TrimSuffix(name, Extension)] = sum
	}
	return modules, nil
}
