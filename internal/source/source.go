// Package source reads recipe, ingredient, and scenario documents.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ErrEmpty indicates a source exists but contains no content.
var ErrEmpty = errors.New("source: empty document")

// Source yields the raw bytes of a configuration document.
// Read is called once at machine start and again on every recalibration.
type Source interface {
	Read() ([]byte, error)
	String() string
}

// File reads Path from FS, or from the local filesystem when FS is nil.
type File struct {
	FS   fs.FS
	Path string
}

// Read returns the file contents. An empty file is an error.
func (f File) Read() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if f.FS == nil {
		data, err = os.ReadFile(f.Path)
	} else {
		if strings.ContainsAny(f.Path, `\`) || !fs.ValidPath(f.Path) {
			return nil, fmt.Errorf("source: invalid path %q", f.Path)
		}
		data, err = fs.ReadFile(f.FS, f.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("source: reading %s: %w", f.Path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, f.Path)
	}
	return data, nil
}

func (f File) String() string { return f.Path }

// Bytes is an in-memory document, mostly for tests and scenarios.
type Bytes struct {
	Name string
	Data []byte
}

// Read returns a copy of the document.
func (b Bytes) Read() ([]byte, error) {
	if len(b.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, b.Name)
	}
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out, nil
}

func (b Bytes) String() string { return b.Name }
