package toolchain

import (
	"os"
	"path/filepath"

	"github.com/leapstack-labs/ajanta/internal/errs"
)

// Workspace is a scoped temporary directory for one build's intermediate
// artifacts. Close removes it and everything inside.
type Workspace struct {
	Dir string
}

// NewWorkspace creates a fresh temporary directory under base, or under the
// system temp directory when base is empty.
func NewWorkspace(base string) (*Workspace, error) {
	dir, err := os.MkdirTemp(base, "ajanta-build-*")
	if err != nil {
		return nil, errs.IO("create temp dir", base, err)
	}
	return &Workspace{Dir: dir}, nil
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Close removes the workspace. It is safe to call more than once.
func (w *Workspace) Close() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	err := os.RemoveAll(w.Dir)
	w.Dir = ""
	return err
}
