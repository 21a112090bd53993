package pipeline

import (
	"os"
	"path/filepath"

	"github.com/leapstack-labs/ajanta/internal/errs"
)

// pendingFile is a file to be written by writeFilesAtomic.
type pendingFile struct {
	path string
	data []byte
}

// writeFileAtomic writes data to a temporary file beside path and renames
// it into place, so readers see either the old file or the complete new one.
func writeFileAtomic(path string, data []byte) error {
	return writeFilesAtomic(pendingFile{path: path, data: data})
}

// writeFilesAtomic stages every file beside its target before renaming
// any, then renames them in order. A failed write or rename leaves the
// targets after it untouched and removes every leftover temp file.
func writeFilesAtomic(files ...pendingFile) error {
	staged := make([]string, 0, len(files))
	for _, f := range files {
		tmp, err := stageFile(f.path, f.data)
		if err != nil {
			removeAll(staged)
			return err
		}
		staged = append(staged, tmp)
	}
	for i, f := range files {
		if err := os.Rename(staged[i], f.path); err != nil {
			removeAll(staged[i:])
			return errs.IO("rename", f.path, err)
		}
	}
	return nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}

// stageFile writes data to a synced temp file in path's directory and
// returns its name.
func stageFile(path string, data []byte) (name string, err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", errs.IO("create temp file", dir, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", errs.IO("write", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", errs.IO("sync", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return "", errs.IO("close", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil { //nolint:gosec // build artifacts are world readable
		return "", errs.IO("chmod", tmp.Name(), err)
	}
	return tmp.Name(), nil
}
