// Package beamtest builds synthetic .beam images for tests.
package beamtest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Chunk is one IFF chunk of a BEAM image.
type Chunk struct {
	ID   string
	Body []byte
}

// Image assembles a FOR1/BEAM container from chunks, padding each body to a
// 4-byte boundary.
func Image(chunks ...Chunk) []byte {
	var body bytes.Buffer
	body.WriteString("BEAM")
	for _, c := range chunks {
		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(len(c.Body)))
		body.WriteString(c.ID)
		body.Write(size[:])
		body.Write(c.Body)
		for pad := (4 - len(c.Body)%4) % 4; pad > 0; pad-- {
			body.WriteByte(0)
		}
	}

	var out bytes.Buffer
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(body.Len()))
	out.WriteString("FOR1")
	out.Write(size[:])
	out.Write(body.Bytes())
	return out.Bytes()
}

// Module returns an image whose code chunk holds code and whose debug chunk
// holds debug, so two modules with the same code but different debug info
// digest identically.
func Module(code, debug string) []byte {
	return Image(
		Chunk{ID: "AtU8", Body: []byte("atoms")},
		Chunk{ID: "Code", Body: []byte(code)},
		Chunk{ID: "ExpT", Body: []byte{0, 0, 0, 1}},
		Chunk{ID: "CInf", Body: []byte(debug)},
		Chunk{ID: "Dbgi", Body: []byte(debug)},
	)
}

// WriteModule writes <dir>/<name>.beam with the given code.
func WriteModule(t testing.TB, dir, name, code string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name+".beam")
	if err := os.WriteFile(path, Module(code, "compiled"), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
