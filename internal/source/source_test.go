package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestFile_ReadFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"recipes.yaml": &fstest.MapFile{Data: []byte("beverages: []\n")},
	}
	data, err := File{FS: fsys, Path: "recipes.yaml"}.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != "beverages: []\n" {
		t.Errorf("Read() = %q", data)
	}
}

func TestFile_ReadFromDisk(t *testing.T) {
	p := filepath.Join(t.TempDir(), "ingredients.yaml")
	if err := os.WriteFile(p, []byte("ingredients: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := File{Path: p}.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(data) == 0 {
		t.Error("Read() returned no data")
	}
}

func TestFile_Errors(t *testing.T) {
	fsys := fstest.MapFS{
		"empty.yaml": &fstest.MapFile{Data: nil},
	}
	tests := []struct {
		name      string
		file      File
		wantEmpty bool
	}{
		{name: "missing on disk", file: File{Path: "/nonexistent/recipes.yaml"}},
		{name: "missing in fs", file: File{FS: fsys, Path: "nope.yaml"}},
		{name: "path traversal", file: File{FS: fsys, Path: "../recipes.yaml"}},
		{name: "empty file", file: File{FS: fsys, Path: "empty.yaml"}, wantEmpty: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.file.Read()
			if err == nil {
				t.Fatal("Read() should fail")
			}
			if got := errors.Is(err, ErrEmpty); got != tt.wantEmpty {
				t.Errorf("errors.Is(err, ErrEmpty) = %v, want %v (err: %v)", got, tt.wantEmpty, err)
			}
		})
	}
}

func TestBytes_ReadReturnsCopy(t *testing.T) {
	b := Bytes{Name: "inline", Data: []byte("abc")}
	data, err := b.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	data[0] = 'x'
	if string(b.Data) != "abc" {
		t.Error("mutating the result changed the source")
	}
	if b.String() != "inline" {
		t.Errorf("String() = %q, want %q", b.String(), "inline")
	}

	if _, err := (Bytes{Name: "empty"}).Read(); !errors.Is(err, ErrEmpty) {
		t.Errorf("empty Bytes error = %v, want ErrEmpty", err)
	}
}
