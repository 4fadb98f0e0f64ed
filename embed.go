// Package barista provides the embedded default recipes, ingredient stock,
// and demo scenarios, plus an overlay filesystem that checks local disk
// first and falls back to the embedded copies.
package barista

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
)

// Default document names inside Defaults.
const (
	RecipesFile     = "recipes.yaml"
	IngredientsFile = "ingredients.yaml"
	ScenariosFile   = "scenarios.yaml"
)

//go:embed defaults/*.yaml
var rawDefaults embed.FS

// Defaults is the embedded defaults filesystem with the "defaults/" prefix stripped.
var Defaults = mustSub(rawDefaults, "defaults")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// OverlayFS returns a filesystem that checks localDir on disk first,
// falling back to the embedded filesystem for files not found locally.
func OverlayFS(localDir string, embedded fs.FS) fs.FS {
	return overlayFS{localDir: localDir, embedded: embedded}
}

type overlayFS struct {
	localDir string
	embedded fs.FS
}

func (o overlayFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	f, err := os.Open(filepath.Join(o.localDir, filepath.FromSlash(name)))
	if err == nil {
		return f, nil
	}
	return o.embedded.Open(name)
}
