// Package stubs embeds the pipeline-owned shim sources that are linked
// around every guest object, and the guest header they share.
package stubs

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed assets
var assets embed.FS

// Profile selects the compiler flag set a stub is built with.
type Profile int

const (
	// ProfileBaseline applies the ISA and ABI flags only.
	ProfileBaseline Profile = iota
	// ProfileFreestanding adds the no-stdlib, no-builtin flags used for guest code.
	ProfileFreestanding
)

func (p Profile) String() string {
	if p == ProfileFreestanding {
		return "freestanding"
	}
	return "baseline"
}

// Stub is one shim source.
type Stub struct {
	Name    string
	File    string
	Profile Profile
}

// Object is the conventional object file name for the stub.
func (s Stub) Object() string {
	return s.Name + ".o"
}

// The three stubs, in the order they are compiled.
var (
	Entry   = Stub{Name: "entry", File: "entry.S", Profile: ProfileBaseline}
	Runtime = Stub{Name: "runtime", File: "runtime.c", Profile: ProfileFreestanding}
	Exports = Stub{Name: "exports", File: "exports.S", Profile: ProfileBaseline}
)

// All returns the stub set.
func All() []Stub {
	return []Stub{Entry, Runtime, Exports}
}

// Source returns the embedded source of a stub.
func Source(s Stub) ([]byte, error) {
	data, err := assets.ReadFile("assets/" + s.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read stub %s: %w", s.File, err)
	}
	return data, nil
}

// Tree is a stub set written to disk.
type Tree struct {
	Root       string
	IncludeDir string
	Sources    map[string]string // stub name to source path
}

// Path returns the on-disk source path of a stub.
func (t *Tree) Path(s Stub) string {
	return t.Sources[s.Name]
}

// Materialize writes the stub sources and include directory under dir.
func Materialize(dir string) (*Tree, error) {
	root := filepath.Join(dir, "stubs")
	err := fs.WalkDir(assets, "assets", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel("assets", path)
		if err != nil {
			return err
		}
		target := filepath.Join(root, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		data, err := assets.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o600)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write stubs: %w", err)
	}

	t := &Tree{
		Root:       root,
		IncludeDir: filepath.Join(root, "include"),
		Sources:    make(map[string]string, 3),
	}
	for _, s := range All() {
		t.Sources[s.Name] = filepath.Join(root, s.File)
	}
	return t, nil
}
